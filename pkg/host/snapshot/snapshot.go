// Package snapshot implements the host interfaces over a JSON snapshot of a
// design document: scene nodes, local components, the team library and the
// variable store.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/tokens/memstore"
	"github.com/gnana997/stylesync/pkg/util"
)

// ErrLibraryDisabled is returned by library imports when the snapshot's
// library is switched off.
var ErrLibraryDisabled = errors.New("library is not enabled for this file")

// ErrUnknownNode is returned when selecting a node id the snapshot lacks.
var ErrUnknownNode = errors.New("unknown node")

// File is the on-disk snapshot format.
type File struct {
	File          host.FileInfo       `json:"file"`
	Selection     []string            `json:"selection"`
	Nodes         []host.Node         `json:"nodes"`
	Components    []host.Component    `json:"components"`
	ComponentSets []host.ComponentSet `json:"componentSets"`
	Library       LibraryFile         `json:"library"`
	Tokens        tokens.Snapshot     `json:"tokens"`
}

// LibraryFile lists the published components a file can import.
type LibraryFile struct {
	Disabled      bool                `json:"disabled,omitempty"`
	Components    []host.Component    `json:"components"`
	ComponentSets []host.ComponentSet `json:"componentSets"`
}

// Parse decodes and validates a snapshot.
func Parse(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot JSON: %w", err)
	}
	if errs := f.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("snapshot validation failed: %w", errors.Join(errs...))
	}
	return &f, nil
}

// Validate checks node references and the token snapshot.
func (f *File) Validate() []error {
	var errs []error
	nodes := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("nodes[%d]: id is required", i))
			continue
		}
		if nodes[n.ID] {
			errs = append(errs, fmt.Errorf("node %q: duplicate id", n.ID))
			continue
		}
		nodes[n.ID] = true
	}
	for _, id := range f.Selection {
		if !nodes[id] {
			errs = append(errs, fmt.Errorf("selection references unknown node %q", id))
		}
	}
	sets := make(map[string]bool, len(f.ComponentSets))
	for _, s := range f.ComponentSets {
		sets[s.ID] = true
	}
	for _, c := range f.Components {
		if c.SetID != "" && !sets[c.SetID] {
			errs = append(errs, fmt.Errorf("component %q: references unknown set %q", c.Key, c.SetID))
		}
	}
	libSets := make(map[string]bool, len(f.Library.ComponentSets))
	for _, s := range f.Library.ComponentSets {
		libSets[s.ID] = true
	}
	for _, c := range f.Library.Components {
		if c.SetID != "" && !libSets[c.SetID] {
			errs = append(errs, fmt.Errorf("library component %q: references unknown set %q", c.Key, c.SetID))
		}
	}
	errs = append(errs, f.Tokens.Validate()...)
	return errs
}

// Option customises a Document.
type Option func(*Document)

// WithStore replaces the snapshot's embedded tokens with an external store.
func WithStore(s tokens.Store) Option {
	return func(d *Document) { d.external = s }
}

// WithLogger sets the logger used for notifications.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// WithNotifier forwards notifications to n in addition to recording them.
func WithNotifier(n host.Notifier) Option {
	return func(d *Document) { d.forward = n }
}

// Document is a snapshot-backed host.Document, host.Library and host.Notifier.
// It is safe for concurrent use.
type Document struct {
	mu       sync.RWMutex
	file     *File
	nodes    map[string]host.Node
	comps    map[string]*host.Component
	sets     map[string]*host.ComponentSet
	libComps map[string]*host.Component
	libSets  map[string]*host.ComponentSet
	store    tokens.Store
	external tokens.Store

	subMu  sync.Mutex
	subs   map[int]func()
	nextID int

	noteMu sync.Mutex
	notes  []host.Notification

	logger  *slog.Logger
	forward host.Notifier
}

var (
	_ host.Document = (*Document)(nil)
	_ host.Library  = (*Document)(nil)
	_ host.Notifier = (*Document)(nil)
)

// New builds a document from a parsed snapshot.
func New(f *File, opts ...Option) (*Document, error) {
	d := &Document{subs: make(map[int]func())}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = util.OrDefault(d.logger)
	if err := d.replace(f); err != nil {
		return nil, err
	}
	return d, nil
}

// Load reads a snapshot through the file cache.
func Load(cache util.FileCache, path string, opts ...Option) (*Document, error) {
	f, err := ReadFile(cache, path)
	if err != nil {
		return nil, err
	}
	return New(f, opts...)
}

// ReadFile reads and parses a snapshot file.
func ReadFile(cache util.FileCache, path string) (*File, error) {
	data, err := cache.ReadAll(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Parse(data)
}

func (d *Document) replace(f *File) error {
	nodes := make(map[string]host.Node, len(f.Nodes))
	for _, n := range f.Nodes {
		nodes[n.ID] = n
	}
	sets, comps := link(f.ComponentSets, f.Components)
	libSets, libComps := link(f.Library.ComponentSets, f.Library.Components)

	store := d.external
	if store == nil {
		ms, err := memstore.New(&f.Tokens)
		if err != nil {
			return err
		}
		store = ms
	}

	d.mu.Lock()
	d.file = f
	d.nodes = nodes
	d.sets, d.comps = sets, comps
	d.libSets, d.libComps = libSets, libComps
	d.store = store
	d.mu.Unlock()
	return nil
}

// link indexes sets by id and components by key, wiring each component to its parent set.
func link(setList []host.ComponentSet, compList []host.Component) (map[string]*host.ComponentSet, map[string]*host.Component) {
	sets := make(map[string]*host.ComponentSet, len(setList))
	for i := range setList {
		s := setList[i]
		sets[s.ID] = &s
	}
	comps := make(map[string]*host.Component, len(compList))
	for i := range compList {
		c := compList[i]
		if c.SetID != "" {
			c.Parent = sets[c.SetID]
		}
		comps[c.Key] = &c
	}
	return sets, comps
}

// Reload swaps in a new snapshot. The selection keeps the new file's ids and
// selection subscribers are told. The token store is rebuilt unless an
// external store was supplied.
func (d *Document) Reload(f *File) error {
	if err := d.replace(f); err != nil {
		return err
	}
	d.fireSelectionChange()
	return nil
}

// Select replaces the selection with the given node ids.
func (d *Document) Select(ids ...string) error {
	d.mu.Lock()
	for _, id := range ids {
		if _, ok := d.nodes[id]; !ok {
			d.mu.Unlock()
			return fmt.Errorf("node %q: %w", id, ErrUnknownNode)
		}
	}
	d.file.Selection = append([]string(nil), ids...)
	d.mu.Unlock()

	d.fireSelectionChange()
	return nil
}

// Nodes returns every node in the document, sorted by id.
func (d *Document) Nodes() []host.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]host.Node, 0, len(d.nodes))
	for _, n := range d.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Selection implements host.Document.
func (d *Document) Selection() []host.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]host.Node, 0, len(d.file.Selection))
	for _, id := range d.file.Selection {
		out = append(out, d.nodes[id])
	}
	return out
}

// FileInfo implements host.Document.
func (d *Document) FileInfo() host.FileInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.file.File
}

// ComponentByKey implements host.Document.
func (d *Document) ComponentByKey(key string) (*host.Component, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.comps[key]
	return c, ok
}

// ComponentSetByID implements host.Document.
func (d *Document) ComponentSetByID(id string) (*host.ComponentSet, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sets[id]
	return s, ok
}

// Tokens implements host.Document.
func (d *Document) Tokens() tokens.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store
}

// OnSelectionChange implements host.Document.
func (d *Document) OnSelectionChange(fn func()) func() {
	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.subMu.Unlock()

	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}
}

func (d *Document) fireSelectionChange() {
	d.subMu.Lock()
	ids := make([]int, 0, len(d.subs))
	for id := range d.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.subs[id])
	}
	d.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ImportComponentSetByKey implements host.Library.
func (d *Document) ImportComponentSetByKey(ctx context.Context, key string) (*host.ComponentSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.file.Library.Disabled {
		return nil, ErrLibraryDisabled
	}
	for _, s := range d.file.Library.ComponentSets {
		if s.Key == key {
			return d.libSets[s.ID], nil
		}
	}
	return nil, fmt.Errorf("no published component set with key %q", key)
}

// ImportComponentByKey implements host.Library.
func (d *Document) ImportComponentByKey(ctx context.Context, key string) (*host.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.file.Library.Disabled {
		return nil, ErrLibraryDisabled
	}
	c, ok := d.libComps[key]
	if !ok {
		return nil, fmt.Errorf("no published component with key %q", key)
	}
	return c, nil
}

// Notify implements host.Notifier. Notifications are logged, recorded and
// forwarded.
func (d *Document) Notify(n host.Notification) {
	if n.Error {
		d.logger.Warn("notify", "message", n.Message)
	} else {
		d.logger.Info("notify", "message", n.Message)
	}
	d.noteMu.Lock()
	d.notes = append(d.notes, n)
	d.noteMu.Unlock()
	if d.forward != nil {
		d.forward.Notify(n)
	}
}

// Notifications returns every notification shown so far.
func (d *Document) Notifications() []host.Notification {
	d.noteMu.Lock()
	defer d.noteMu.Unlock()
	return append([]host.Notification(nil), d.notes...)
}
