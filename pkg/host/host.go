// Package host describes the design document the plugin runs against: the
// scene nodes of the current selection, the component library, the token
// store and the user-facing notifier.
package host

import (
	"context"

	"github.com/gnana997/stylesync/pkg/color"
	"github.com/gnana997/stylesync/pkg/tokens"
)

// Node types the plugin distinguishes. Any other type is treated as a plain layer.
const (
	NodeInstance     = "INSTANCE"
	NodeComponent    = "COMPONENT"
	NodeComponentSet = "COMPONENT_SET"
	NodeFrame        = "FRAME"
)

// Paint types. Gradient paints use GRADIENT_LINEAR, GRADIENT_RADIAL and so on.
const (
	PaintSolid = "SOLID"
	PaintImage = "IMAGE"
)

// Paint is one fill or stroke layer. Color carries RGB only; alpha comes from Opacity.
type Paint struct {
	Type    string       `json:"type"`
	Visible *bool        `json:"visible,omitempty"`
	Color   *color.Color `json:"color,omitempty"`
	Opacity *float64     `json:"opacity,omitempty"`
}

// IsVisible reports whether the paint renders. Absent means visible.
func (p Paint) IsVisible() bool {
	return p.Visible == nil || *p.Visible
}

// Corners holds per-corner radii.
type Corners struct {
	TopLeft     float64 `json:"topLeft"`
	TopRight    float64 `json:"topRight"`
	BottomRight float64 `json:"bottomRight"`
	BottomLeft  float64 `json:"bottomLeft"`
}

// Uniform reports whether all four corners are equal.
func (c Corners) Uniform() bool {
	return c.TopLeft == c.TopRight && c.TopRight == c.BottomRight && c.BottomRight == c.BottomLeft
}

// Node is a scene node. Pointer and slice fields are nil when the node type
// does not carry the attribute.
type Node struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	Fills        []Paint  `json:"fills,omitempty"`
	Strokes      []Paint  `json:"strokes,omitempty"`
	StrokeWeight *float64 `json:"strokeWeight,omitempty"`
	CornerRadius *float64 `json:"cornerRadius,omitempty"`
	CornerRadii  *Corners `json:"cornerRadii,omitempty"`

	// MainComponentKey is set on instances.
	MainComponentKey string `json:"mainComponentKey,omitempty"`
	// ComponentKey is set on components.
	ComponentKey string `json:"componentKey,omitempty"`
	// ComponentSetID is the owning set of a component, or the id of a component set node.
	ComponentSetID string `json:"componentSetId,omitempty"`
}

// Component property types.
const (
	PropertyVariant      = "VARIANT"
	PropertyBoolean      = "BOOLEAN"
	PropertyInstanceSwap = "INSTANCE_SWAP"
	PropertyText         = "TEXT"
)

// PropertyDefinition is one entry of a component set's property definitions.
type PropertyDefinition struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	VariantOptions []string `json:"variantOptions,omitempty"`
	DefaultValue   any      `json:"defaultValue,omitempty"`
}

// ComponentSet is a group of component variants.
type ComponentSet struct {
	ID                string               `json:"id"`
	Key               string               `json:"key"`
	Name              string               `json:"name"`
	DefaultVariantKey string               `json:"defaultVariantKey,omitempty"`
	Properties        []PropertyDefinition `json:"properties"`
}

// Component is a single component. Parent is nil for a standalone component.
type Component struct {
	Key    string        `json:"key"`
	Name   string        `json:"name"`
	SetID  string        `json:"setId,omitempty"`
	Parent *ComponentSet `json:"-"`
}

// FileInfo identifies the open document.
type FileInfo struct {
	FileName string `json:"fileName"`
	FileKey  string `json:"fileKey"`
}

// Notification is a transient message shown to the user.
type Notification struct {
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// Document is the open design document.
type Document interface {
	// Selection returns the selected nodes, first selected first.
	Selection() []Node
	FileInfo() FileInfo
	// ComponentByKey resolves a main component of an instance.
	ComponentByKey(key string) (*Component, bool)
	ComponentSetByID(id string) (*ComponentSet, bool)
	// OnSelectionChange registers fn and returns a func that removes it.
	OnSelectionChange(fn func()) (unsubscribe func())
	Tokens() tokens.Store
}

// Library imports published components by key. Both calls may be slow.
type Library interface {
	ImportComponentSetByKey(ctx context.Context, key string) (*ComponentSet, error)
	ImportComponentByKey(ctx context.Context, key string) (*Component, error)
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a func to Notifier.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }
