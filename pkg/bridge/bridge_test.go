package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/host/snapshot"
	"github.com/gnana997/stylesync/pkg/host/snapshot/snapshottest"
	"github.com/gnana997/stylesync/pkg/style"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/transfer"
	"github.com/gnana997/stylesync/pkg/variants"
)

func testConn(t *testing.T) (*Conn, *snapshot.Document) {
	t.Helper()
	doc := snapshottest.Document()
	conn, err := Connect(context.Background(), HostConfig{Document: doc, Library: doc, Notifier: doc})
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Stop()
		_ = conn.Wait()
	})
	return conn, doc
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMessage_Encoding(t *testing.T) {
	m, err := NewMessage(Notify, "hello")
	require.NoError(t, err)
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"NOTIFY","payload":"hello"}`, string(raw))

	var s string
	require.NoError(t, m.Decode(&s))
	assert.Equal(t, "hello", s)

	empty, err := NewMessage(Close, nil)
	require.NoError(t, err)
	raw, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CLOSE"}`, string(raw))
	assert.ErrorContains(t, empty.Decode(&s), "missing payload")

	_, err = NewMessage(Notify, make(chan int))
	assert.Error(t, err)
}

func TestEndpoint_RunsHandlersInOrder(t *testing.T) {
	ep := NewEndpoint("test", 4, nil)
	var got []string
	ep.On("A", func(_ context.Context, m Message) {
		var s string
		_ = m.Decode(&s)
		got = append(got, s)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ep.Run(ctx) }()

	for _, s := range []string{"one", "two", "three"} {
		m, err := NewMessage("A", s)
		require.NoError(t, err)
		require.NoError(t, ep.Post(m))
	}
	require.NoError(t, ep.Post(Message{Type: "UNKNOWN"}))
	finished := make(chan struct{})
	require.NoError(t, ep.Do(func(context.Context) { close(finished) }))
	<-finished

	assert.Equal(t, []string{"one", "two", "three"}, got)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, ep.Post(Message{Type: "A"}), ErrClosed)
	ep.Stop()
}

func TestEndpoint_EmitRequiresPeer(t *testing.T) {
	ep := NewEndpoint("lonely", 1, nil)
	assert.ErrorContains(t, ep.Emit(Notify, "x"), "not connected")
}

func TestHost_SelectionAndFileInfo(t *testing.T) {
	conn, doc := testConn(t)
	ctx := ctxTimeout(t)

	sel, err := conn.Client.Selection(ctx)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "Primary Button", sel.Name)
	assert.Equal(t, "#3366FF", sel.FirstFillHex())
	assert.Equal(t, style.Uniform(8), sel.CornerRadius)

	info, err := conn.Client.FileInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, host.FileInfo{FileName: "Kido App", FileKey: "file-123"}, info)

	require.NoError(t, doc.Select())
	sel, err = conn.Client.Selection(ctx)
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestHost_UnsolicitedSelectionChanged(t *testing.T) {
	conn, doc := testConn(t)

	seen := make(chan *style.ExtractedStyle, 4)
	conn.Client.OnSelection(func(s *style.ExtractedStyle) { seen <- s })

	require.NoError(t, doc.Select(snapshottest.CardNodeID))
	select {
	case s := <-seen:
		require.NotNil(t, s)
		assert.Equal(t, "Card", s.Name)
		assert.Equal(t, style.RadiusMixed, s.CornerRadius.Kind)
		require.NotNil(t, s.CornerRadii)
		assert.Equal(t, 12.0, s.CornerRadii.TopLeft)
	case <-time.After(5 * time.Second):
		t.Fatal("no SELECTION_CHANGED")
	}
	assert.Equal(t, "Card", conn.Client.LatestSelection().Name)
}

func TestHost_Variants(t *testing.T) {
	conn, doc := testConn(t)
	ctx := ctxTimeout(t)

	res, err := conn.Client.ComponentVariants(ctx, snapshottest.ButtonSetKey)
	require.NoError(t, err)
	assert.Equal(t, "Buttons", res.ComponentSetName)
	assert.Len(t, res.VariantProperties, 5)
	assert.Empty(t, res.Error)

	res, err = conn.Client.SelectionVariants(ctx)
	require.NoError(t, err)
	assert.Equal(t, variants.ErrNotAComponent.Error(), res.Error)

	require.NoError(t, doc.Select(snapshottest.InstanceNodeID))
	res, err = conn.Client.SelectionVariants(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshottest.ButtonKey, res.ComponentKey)
	assert.True(t, res.FromSelection)

	res, err = conn.Client.ComponentVariants(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "component key is required", res.Error)
}

func TestHost_Collections(t *testing.T) {
	conn, _ := testConn(t)
	infos, err := conn.Client.Collections(ctxTimeout(t))
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "theme", infos[0].Name)
	assert.Equal(t, 2, infos[0].VariableCount)
	assert.Equal(t, []tokens.Mode{{ModeID: "m-light", Name: "Light"}, {ModeID: "m-dark", Name: "Dark"}}, infos[0].Modes)
	assert.Equal(t, 2, infos[1].VariableCount)
}

func TestHost_ParseAndApply(t *testing.T) {
	conn, doc := testConn(t)
	ctx := ctxTimeout(t)

	res, err := conn.Client.Apply(ctx, []string{"Light"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "invalid transfer state")

	parsed, err := conn.Client.Parse(ctx, "{")
	require.NoError(t, err)
	assert.False(t, parsed.Success)
	assert.Nil(t, parsed.Preview)
	assert.Contains(t, parsed.Error, "Invalid JSON")

	parsed, err = conn.Client.Parse(ctx, `{"meta":{"sourceFileName":"Kido App"},"variableMappings":[
		{"variableName":"system/bg/primary","newValue":{"r":1,"g":0,"b":0},"modes":["Light","Dark"]},
		{"variableName":"radius/semantic/large-controls","newValue":"8"},
		{"variableName":"missing","newValue":1}
	]}`)
	require.NoError(t, err)
	require.True(t, parsed.Success)
	require.NotNil(t, parsed.Preview)
	assert.Equal(t, 1, parsed.Preview.ReadyCount)
	assert.Equal(t, 2, parsed.Preview.ErrorCount)
	assert.Equal(t, transfer.StatusTypeMismatch, parsed.Preview.Items[1].Status)

	res, err = conn.Client.Apply(ctx, []string{"Light", "Dark"}, parsed.Preview.Ready())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AppliedCount)
	assert.Empty(t, res.Errors)

	v, err := doc.Tokens().VariableByID(ctx, "v-bg")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.ValuesByMode["m-dark"].Color.R)

	notes := doc.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, "Successfully applied 1 variable changes", notes[len(notes)-1].Message)
}

func TestHost_ParseAfterReload(t *testing.T) {
	conn, doc := testConn(t)
	ctx := ctxTimeout(t)

	f := snapshottest.Fixture()
	f.Tokens.Variables = append(f.Tokens.Variables, tokens.Variable{
		ID: "v-gap", Name: "spacing/gap", CollectionID: "c-border", ResolvedType: tokens.TypeFloat,
		ValuesByMode: map[string]tokens.Value{"m-value": tokens.NumberValue(4)},
	})
	require.NoError(t, doc.Reload(f))

	infos, err := conn.Client.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 3, infos[1].VariableCount)

	parsed, err := conn.Client.Parse(ctx, `{"meta":{"sourceFileName":"Kido App"},"variableMappings":[
		{"variableName":"spacing/gap","newValue":12,"modes":["Value"]}
	]}`)
	require.NoError(t, err)
	require.True(t, parsed.Success)
	require.Len(t, parsed.Preview.Items, 1)
	assert.Equal(t, transfer.StatusReady, parsed.Preview.Items[0].Status)
	assert.Equal(t, "v-gap", parsed.Preview.Items[0].VariableID)

	res, err := conn.Client.Apply(ctx, []string{"Value"}, parsed.Preview.Ready())
	require.NoError(t, err)
	assert.True(t, res.Success)

	v, err := doc.Tokens().VariableByID(ctx, "v-gap")
	require.NoError(t, err)
	assert.Equal(t, tokens.NumberValue(12), v.ValuesByMode["m-value"])
}

func TestHost_ParseFailureNotifies(t *testing.T) {
	conn, doc := testConn(t)
	ctx := ctxTimeout(t)

	parsed, err := conn.Client.Parse(ctx, "{")
	require.NoError(t, err)
	assert.False(t, parsed.Success)

	notes := doc.Notifications()
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Error)
	assert.Equal(t, "Error: "+parsed.Error, notes[0].Message)
}

func TestHost_NotifyAndClose(t *testing.T) {
	conn, doc := testConn(t)
	ctx := ctxTimeout(t)

	require.NoError(t, conn.Client.Notify("Export copied"))
	// A round trip after NOTIFY guarantees it has been handled.
	_, err := conn.Client.FileInfo(ctx)
	require.NoError(t, err)
	notes := doc.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, host.Notification{Message: "Export copied"}, notes[0])

	require.NoError(t, conn.Client.Close())
	require.NoError(t, conn.Wait())

	_, err = conn.Client.FileInfo(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
