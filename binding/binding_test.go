package binding

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
	"github.com/wippyai/nfm-bind/plugintest"
	"github.com/wippyai/nfm-bind/resource"
)

const stubPath = "/plugins/libnfm.so"

func bindStub(t *testing.T, p *plugintest.Plugin) *Binding {
	t.Helper()
	loader := plugintest.NewLoader().Put(stubPath, p)
	b, err := Bind(context.Background(), loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	t.Cleanup(func() { _ = b.Unbind(context.Background()) })
	return b
}

func isKind(err error, kind errors.Kind) bool {
	return stderrors.Is(err, &errors.Error{Kind: kind})
}

func TestBind_LoadFailure(t *testing.T) {
	ctx := context.Background()
	m := NewManager(plugintest.NewLoader(), WithLogger(zaptest.NewLogger(t)))

	b, err := m.Bind(ctx, "/does/not/exist.so")
	if err == nil {
		t.Fatal("expected bind to fail")
	}
	if b != nil {
		t.Error("failed bind must not return a binding")
	}
	if !isKind(err, errors.KindLoad) {
		t.Errorf("expected load error, got %v", err)
	}
	if !strings.Contains(err.Error(), "/does/not/exist.so") {
		t.Errorf("error should name the path: %v", err)
	}
	if m.Bound() {
		t.Error("manager must stay unbound after a failed load")
	}
}

func TestBind_MissingMandatorySymbol(t *testing.T) {
	ctx := context.Background()
	broken := plugintest.New().Without("Hide")
	loader := plugintest.NewLoader().Put(stubPath, broken)

	_, err := Bind(ctx, loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if !isKind(err, errors.KindSymbolMissing) {
		t.Fatalf("expected symbol_missing, got %v", err)
	}

	var missing *errors.MissingSymbolsError
	if !stderrors.As(err, &missing) {
		t.Fatalf("expected MissingSymbolsError in chain, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Hide" {
		t.Errorf("missing = %v, want [Hide]", names)
	}
	if broken.Calls("Initialize") != 0 {
		t.Error("Initialize must not run on a failed bind")
	}
	if broken.Live() != 0 {
		t.Errorf("image left mapped: live=%d", broken.Live())
	}

	fixed := plugintest.New()
	loader.Put(stubPath, fixed)
	b, err := Bind(ctx, loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("bind corrected image: %v", err)
	}
	defer b.Unbind(ctx)
	if fixed.Calls("Initialize") != 1 {
		t.Errorf("Initialize calls = %d, want 1", fixed.Calls("Initialize"))
	}
}

func TestBind_ReportsEveryFailedSymbol(t *testing.T) {
	p := plugintest.New().
		Without("ShowItemsList", "Initialize").
		ExportAs("ShowWindowsList", nfmbind.SigShowString, plugintest.Noop)
	loader := plugintest.NewLoader().Put(stubPath, p)

	_, err := Bind(context.Background(), loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	var missing *errors.MissingSymbolsError
	if !stderrors.As(err, &missing) {
		t.Fatalf("expected MissingSymbolsError, got %v", err)
	}

	want := []string{"Initialize", "ShowWindowsList", "ShowItemsList"}
	got := missing.Names()
	if len(got) != len(want) {
		t.Fatalf("missing = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("missing[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if !strings.Contains(missing.Symbols[1].Reason, "signature_mismatch") {
		t.Errorf("ShowWindowsList reason = %q", missing.Symbols[1].Reason)
	}
}

func TestBind_InitializeOnce(t *testing.T) {
	p := plugintest.New()
	b := bindStub(t, p)

	if p.Calls("Initialize") != 1 {
		t.Fatalf("Initialize calls = %d, want 1", p.Calls("Initialize"))
	}
	if _, err := b.ShowFileSystem(context.Background(), Callbacks[string]{}); err != nil {
		t.Fatalf("show: %v", err)
	}
	if p.Calls("Initialize") != 1 {
		t.Errorf("Initialize re-run by show: %d", p.Calls("Initialize"))
	}
}

func TestBind_InitializeFailure(t *testing.T) {
	p := plugintest.New().Export("Initialize", func(context.Context, nfmbind.Host, nfmbind.StateHandle) error {
		panic("boom")
	})
	loader := plugintest.NewLoader().Put(stubPath, p)

	_, err := Bind(context.Background(), loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if !isKind(err, errors.KindInitialize) {
		t.Fatalf("expected initialize_failed, got %v", err)
	}
	if !isKind(err, errors.KindTrap) {
		t.Errorf("panic should surface as trap cause: %v", err)
	}
	if p.Live() != 0 {
		t.Errorf("image left mapped: live=%d", p.Live())
	}
}

func TestBind_NilLoader(t *testing.T) {
	_, err := Bind(context.Background(), nil, stubPath, WithLogger(zaptest.NewLogger(t)))
	if !isKind(err, errors.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestBind_LoaderReturnsNoImage(t *testing.T) {
	loader := nfmbind.LoaderFunc(func(context.Context, string, nfmbind.Host) (nfmbind.Image, error) {
		return nil, nil
	})
	b, err := Bind(context.Background(), loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if !isKind(err, errors.KindLoad) {
		t.Fatalf("expected load_failed, got %v", err)
	}
	if b != nil {
		t.Error("failed bind returned a binding")
	}
}

func TestRunLastDefinition_Optional(t *testing.T) {
	ctx := context.Background()

	full := plugintest.New()
	b := bindStub(t, full)
	if !b.CanRunLastDefinition() {
		t.Fatal("expected RunLastDefinition to be available")
	}
	if err := b.RunLastDefinition(ctx); err != nil {
		t.Fatalf("RunLastDefinition: %v", err)
	}
	if full.Calls("RunLastDefinition") != 1 {
		t.Errorf("calls = %d", full.Calls("RunLastDefinition"))
	}

	partial := plugintest.New().Without("RunLastDefinition")
	loader := plugintest.NewLoader().Put("other.so", partial)
	b2, err := Bind(ctx, loader, "other.so", WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("missing optional symbol must not fail bind: %v", err)
	}
	defer b2.Unbind(ctx)
	if b2.CanRunLastDefinition() {
		t.Error("CanRunLastDefinition should be false")
	}
	if err := b2.RunLastDefinition(ctx); !isKind(err, errors.KindUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
}

func TestUnbind(t *testing.T) {
	ctx := context.Background()
	p := plugintest.New()
	loader := plugintest.NewLoader().Put(stubPath, p)

	b, err := Bind(ctx, loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := b.Unbind(ctx); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if p.Live() != 0 {
		t.Errorf("live = %d after unbind", p.Live())
	}
	if err := b.Unbind(ctx); err != nil {
		t.Errorf("second unbind: %v", err)
	}
	var nilBinding *Binding
	if err := nilBinding.Unbind(ctx); err != nil {
		t.Errorf("nil unbind: %v", err)
	}

	if _, err := b.ShowFileSystem(ctx, Callbacks[string]{}); !isKind(err, errors.KindNotBound) {
		t.Errorf("show after unbind: %v", err)
	}
	if err := b.Hide(ctx); !isKind(err, errors.KindNotBound) {
		t.Errorf("hide after unbind: %v", err)
	}
	if p.Calls("ShowFileSystem") != 0 || p.Calls("Hide") != 0 {
		t.Error("entry points reached the plugin after unbind")
	}

	b2, err := Bind(ctx, loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	defer b2.Unbind(ctx)
	if p.Calls("Initialize") != 2 {
		t.Errorf("Initialize calls = %d, want 2", p.Calls("Initialize"))
	}
	if b2.Pending() != 0 {
		t.Errorf("pending leaked into new binding: %d", b2.Pending())
	}
}

func TestShowWindowsList_Selection(t *testing.T) {
	ctx := context.Background()
	p := plugintest.New()
	b := bindStub(t, p)

	type caller struct{ name string }
	state := &caller{name: "alt-tab"}

	var gotWindow nfmbind.WindowHandle
	var gotState any
	selects, closes := 0, 0

	req, err := b.ShowWindowsList(ctx, Callbacks[nfmbind.WindowHandle]{
		OnSelect: func(w nfmbind.WindowHandle, s any) {
			selects++
			gotWindow, gotState = w, s
		},
		OnClosed: func() { closes++ },
		State:    state,
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if req.State() != StateDisplayed {
		t.Fatalf("state = %s, want displayed", req.State())
	}
	if req.Operation() != "show_windows_list" {
		t.Errorf("operation = %q", req.Operation())
	}

	p.SelectWindow(0xBEEF)
	p.Dismiss()

	if selects != 1 || closes != 0 {
		t.Fatalf("selects=%d closes=%d, want 1 and 0", selects, closes)
	}
	if gotWindow != 0xBEEF {
		t.Errorf("window = %#x, want 0xbeef", gotWindow)
	}
	if gotState != state {
		t.Errorf("state pointer changed: %v", gotState)
	}
	if req.State() != StateSelected {
		t.Errorf("state = %s, want selected", req.State())
	}
	select {
	case <-req.Done():
	default:
		t.Error("Done not closed after selection")
	}
}

func TestShow_DismissOnly(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		show func(b *Binding, onSelect func(), onClosed func()) (*Request, error)
	}{
		{"ShowFileSystem", func(b *Binding, s, c func()) (*Request, error) {
			return b.ShowFileSystem(ctx, Callbacks[string]{OnSelect: func(string, any) { s() }, OnClosed: c})
		}},
		{"ShowProgramsList", func(b *Binding, s, c func()) (*Request, error) {
			return b.ShowProgramsList(ctx, Callbacks[string]{OnSelect: func(string, any) { s() }, OnClosed: c})
		}},
		{"ShowProcessesList", func(b *Binding, s, c func()) (*Request, error) {
			return b.ShowProcessesList(ctx, Callbacks[string]{OnSelect: func(string, any) { s() }, OnClosed: c})
		}},
		{"ShowWindowsList", func(b *Binding, s, c func()) (*Request, error) {
			return b.ShowWindowsList(ctx, Callbacks[nfmbind.WindowHandle]{OnSelect: func(nfmbind.WindowHandle, any) { s() }, OnClosed: c})
		}},
		{"ShowItemsList", func(b *Binding, s, c func()) (*Request, error) {
			items := func(any) []string { return []string{"one"} }
			return b.ShowItemsList(ctx, items, Callbacks[string]{OnSelect: func(string, any) { s() }, OnClosed: c})
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := plugintest.New()
			b := bindStub(t, p)

			selects, closes := 0, 0
			req, err := tc.show(b, func() { selects++ }, func() { closes++ })
			if err != nil {
				t.Fatalf("show: %v", err)
			}
			if p.Calls(tc.name) != 1 {
				t.Errorf("%s calls = %d", tc.name, p.Calls(tc.name))
			}

			p.Dismiss()
			p.Dismiss()

			if selects != 0 || closes != 1 {
				t.Errorf("selects=%d closes=%d, want 0 and 1", selects, closes)
			}
			if req.State() != StateDismissed {
				t.Errorf("state = %s, want dismissed", req.State())
			}
		})
	}
}

func TestShowFileSystem_ClosesImmediately(t *testing.T) {
	p := plugintest.New().Export("ShowFileSystem", plugintest.ClosesImmediately)
	b := bindStub(t, p)

	selects, closes := 0, 0
	req, err := b.ShowFileSystem(context.Background(), Callbacks[string]{
		OnSelect: func(string, any) { selects++ },
		OnClosed: func() { closes++ },
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if closes != 1 || selects != 0 {
		t.Fatalf("closes=%d selects=%d, want 1 and 0", closes, selects)
	}
	if req.State() != StateDismissed {
		t.Errorf("state = %s, want dismissed", req.State())
	}
	if b.Pending() != 0 {
		t.Errorf("pending = %d", b.Pending())
	}
}

func TestShow_SelectThenClosedIsSwallowed(t *testing.T) {
	p := plugintest.New().Export("ShowProgramsList", plugintest.SelectsImmediately("notepad"))
	b := bindStub(t, p)

	var got []string
	closes := 0
	req, err := b.ShowProgramsList(context.Background(), Callbacks[string]{
		OnSelect: func(v string, _ any) { got = append(got, v) },
		OnClosed: func() { closes++ },
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if len(got) != 1 || got[0] != "notepad" {
		t.Errorf("selections = %v", got)
	}
	if closes != 0 {
		t.Errorf("closed fired after selection")
	}
	if req.State() != StateSelected {
		t.Errorf("state = %s", req.State())
	}
}

func TestShowItemsList(t *testing.T) {
	ctx := context.Background()
	p := plugintest.New()
	b := bindStub(t, p)

	var providerState any
	items := func(state any) []string {
		providerState = state
		return []string{"alpha", "beta"}
	}

	var selected string
	_, err := b.ShowItemsList(ctx, items, Callbacks[string]{
		OnSelect: func(v string, _ any) { selected = v },
		State:    "ctx-1",
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}

	got := p.Items()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("items = %v", got)
	}
	if providerState != "ctx-1" {
		t.Errorf("provider state = %v", providerState)
	}

	p.Select("beta")
	if selected != "beta" {
		t.Errorf("selected = %q", selected)
	}
	if p.Items() != nil {
		t.Error("items must not be served for a settled request")
	}

	if _, err := b.ShowItemsList(ctx, nil, Callbacks[string]{}); !isKind(err, errors.KindInvalidInput) {
		t.Errorf("nil provider: %v", err)
	}
}

func TestUnbind_AbandonsOutstanding(t *testing.T) {
	ctx := context.Background()
	p := plugintest.New()
	loader := plugintest.NewLoader().Put(stubPath, p)
	b, err := Bind(ctx, loader, stubPath, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	fired := 0
	req, err := b.ShowFileSystem(ctx, Callbacks[string]{
		OnSelect: func(string, any) { fired++ },
		OnClosed: func() { fired++ },
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if b.Pending() != 1 {
		t.Fatalf("pending = %d", b.Pending())
	}

	if err := b.Unbind(ctx); err != nil {
		t.Fatalf("unbind: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	state, err := req.Wait(waitCtx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if state != StateAbandoned {
		t.Errorf("state = %s, want abandoned", state)
	}

	p.Select("/late")
	p.Dismiss()
	if fired != 0 {
		t.Errorf("callbacks fired after unbind: %d", fired)
	}
}

func TestShow_StaleAndMismatchedCallbacksIgnored(t *testing.T) {
	ctx := context.Background()
	p := plugintest.New()
	b := bindStub(t, p)

	var windows []nfmbind.WindowHandle
	first, err := b.ShowWindowsList(ctx, Callbacks[nfmbind.WindowHandle]{
		OnSelect: func(w nfmbind.WindowHandle, _ any) { windows = append(windows, w) },
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	stale := first.Handle()

	// A string selection cannot settle a window menu.
	p.Select("wrong")
	if first.State() != StateDisplayed {
		t.Fatalf("mismatched payload settled request: %s", first.State())
	}

	p.SelectWindow(1)
	if len(windows) != 1 {
		t.Fatalf("windows = %v", windows)
	}

	second, err := b.ShowWindowsList(ctx, Callbacks[nfmbind.WindowHandle]{
		OnSelect: func(w nfmbind.WindowHandle, _ any) { windows = append(windows, w) },
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if second.Handle() == stale {
		t.Fatal("state handle reused without a new generation")
	}

	host{b}.SelectWindow(stale, 99)
	if len(windows) != 1 {
		t.Errorf("stale handle delivered a selection: %v", windows)
	}
	if second.State() != StateDisplayed {
		t.Errorf("stale handle settled the new request: %s", second.State())
	}
}

func TestShow_EntryPointError(t *testing.T) {
	p := plugintest.New().Export("ShowProcessesList", plugintest.Fails(stderrors.New("no display")))
	b := bindStub(t, p)

	closes := 0
	req, err := b.ShowProcessesList(context.Background(), Callbacks[string]{OnClosed: func() { closes++ }})
	if err == nil {
		t.Fatal("expected error")
	}
	if req != nil {
		t.Error("failed show must not return a request")
	}
	if !isKind(err, errors.KindTrap) {
		t.Errorf("expected trap, got %v", err)
	}
	if b.Pending() != 0 {
		t.Errorf("pending = %d", b.Pending())
	}
	p.Dismiss()
	if closes != 0 {
		t.Error("closed routed to a failed request")
	}
}

func TestShow_CallbackMayCallHide(t *testing.T) {
	p := plugintest.New().Export("ShowFileSystem", plugintest.SelectsImmediately("/home"))
	b := bindStub(t, p)

	var hideErr error
	_, err := b.ShowFileSystem(context.Background(), Callbacks[string]{
		OnSelect: func(string, any) { hideErr = b.Hide(context.Background()) },
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if hideErr != nil {
		t.Errorf("hide from callback: %v", hideErr)
	}
	if p.Calls("Hide") != 1 {
		t.Errorf("Hide calls = %d", p.Calls("Hide"))
	}
}

func TestBind_SharedStateTable(t *testing.T) {
	ctx := context.Background()
	table := resource.NewTable()
	p := plugintest.New()
	loader := plugintest.NewLoader().Put(stubPath, p)

	b, err := Bind(ctx, loader, stubPath, WithLogger(zaptest.NewLogger(t)), WithStateTable(table))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := b.ShowFileSystem(ctx, Callbacks[string]{}); err != nil {
		t.Fatalf("show: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("table len = %d, want 1", table.Len())
	}
	if err := b.Unbind(ctx); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("state handle leaked: len = %d", table.Len())
	}
	if h := table.Insert(9, "still open"); h == 0 {
		t.Error("binding closed a table it did not own")
	}
}

func TestTable(t *testing.T) {
	tbl := Table()
	if len(tbl) != 8 {
		t.Fatalf("entries = %d, want 8", len(tbl))
	}
	mandatory := tbl.Mandatory()
	if len(mandatory) != 7 {
		t.Errorf("mandatory = %v", mandatory)
	}
	ep, ok := tbl.Lookup("RunLastDefinition")
	if !ok || ep.Mandatory {
		t.Errorf("RunLastDefinition = %+v, %v", ep, ok)
	}
	if _, ok := tbl.Lookup("hide"); ok {
		t.Error("lookup must be case-sensitive")
	}

	tbl[0].Symbol = "changed"
	if Table()[0].Symbol != "Initialize" {
		t.Error("Table must return a copy")
	}
}
