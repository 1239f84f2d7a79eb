package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
)

// HostModule is the import module plugins use to call back into the host.
const HostModule = "nfm"

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// instantiateHost exports the callback functions to the plugin:
//
//	select_string(state i64, ptr i32, len i32)
//	select_window(state i64, hwnd i64)
//	closed()
//	items(state i64) -> i32
//	item(state i64, index i32, ptr i32, cap i32) -> i32
func (i *Image) instantiateHost(ctx context.Context, r wazero.Runtime) error {
	builder := r.NewHostModuleBuilder(HostModule)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(i.selectString), []api.ValueType{i64, i32, i32}, nil).
		Export("select_string")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(i.selectWindow), []api.ValueType{i64, i64}, nil).
		Export("select_window")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(i.closedFn), nil, nil).
		Export("closed")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(i.itemsFn), []api.ValueType{i64}, []api.ValueType{i32}).
		Export("items")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(i.itemFn), []api.ValueType{i64, i32, i32, i32}, []api.ValueType{i32}).
		Export("item")

	_, err := builder.Instantiate(ctx)
	return err
}

func (i *Image) selectString(_ context.Context, mod api.Module, stack []uint64) {
	state := nfmbind.StateHandle(stack[0])
	ptr := api.DecodeU32(stack[1])
	length := api.DecodeU32(stack[2])

	mem := &WazeroMemory{mem: mod.Memory()}
	data, err := mem.Read(ptr, length)
	if err != nil {
		i.logger.Warn("select_string: bad string", zap.Uint64("state", uint64(state)), zap.Error(err))
		return
	}
	value := string(data)

	i.dropItems(state)
	i.host.SelectString(state, value)
}

func (i *Image) selectWindow(_ context.Context, _ api.Module, stack []uint64) {
	state := nfmbind.StateHandle(stack[0])
	window := nfmbind.WindowHandle(stack[1])

	i.dropItems(state)
	i.host.SelectWindow(state, window)
}

func (i *Image) closedFn(_ context.Context, _ api.Module, _ []uint64) {
	// closed carries no state; it refers to the latest show.
	i.itemsMu.Lock()
	delete(i.items, i.shown)
	i.shown = 0
	i.itemsMu.Unlock()

	i.host.Closed()
}

// itemsFn calls the items provider and caches the result until the next call
// for the same state or until the request settles.
func (i *Image) itemsFn(_ context.Context, _ api.Module, stack []uint64) {
	state := nfmbind.StateHandle(stack[0])
	list := i.host.Items(state)

	i.itemsMu.Lock()
	if i.items != nil {
		if list == nil {
			delete(i.items, state)
		} else {
			i.items[state] = list
		}
	}
	i.itemsMu.Unlock()

	stack[0] = api.EncodeI32(int32(len(list)))
}

// itemFn copies up to cap bytes of entry index into ptr and returns the
// entry's full length, or -1 when there is no such entry.
func (i *Image) itemFn(_ context.Context, mod api.Module, stack []uint64) {
	state := nfmbind.StateHandle(stack[0])
	index := api.DecodeI32(stack[1])
	ptr := api.DecodeU32(stack[2])
	capacity := api.DecodeU32(stack[3])

	i.itemsMu.Lock()
	list := i.items[state]
	i.itemsMu.Unlock()

	if index < 0 || int(index) >= len(list) {
		stack[0] = api.EncodeI32(-1)
		return
	}
	entry := list[index]

	n := uint32(len(entry))
	if n > capacity {
		n = capacity
	}
	if n > 0 {
		mem := &WazeroMemory{mem: mod.Memory()}
		if err := mem.Write(ptr, []byte(entry[:n])); err != nil {
			i.logger.Warn("item: bad buffer", zap.Uint64("state", uint64(state)), zap.Error(err))
			stack[0] = api.EncodeI32(-1)
			return
		}
	}
	stack[0] = api.EncodeI32(int32(len(entry)))
}

func (i *Image) dropItems(state nfmbind.StateHandle) {
	i.itemsMu.Lock()
	delete(i.items, state)
	if i.shown == state {
		i.shown = 0
	}
	i.itemsMu.Unlock()
}
