package engine

// Minimal binary encoder for the test plugins. Each plugin imports every
// callback from the "nfm" module, exports one page of memory with "hello"
// at offset 16, and exports the functions it is given.

const (
	valI32 = 0x7f
	valI64 = 0x7e

	opUnreachable = 0x00
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opI32Const    = 0x41
	opI64Const    = 0x42
	opEnd         = 0x0b
)

// Type indices.
const (
	typeVoid      = 0 // () -> ()
	typeShow      = 1 // (i64) -> ()
	typeSelectStr = 2 // (i64, i32, i32) -> ()
	typeSelectWin = 3 // (i64, i64) -> ()
	typeItems     = 4 // (i64) -> i32
	typeItem      = 5 // (i64, i32, i32, i32) -> i32
	typeTakesI32  = 6 // (i32) -> ()
)

// Imported function indices.
const (
	fnSelectString = 0
	fnSelectWindow = 1
	fnClosed       = 2
	fnItems        = 3
	fnItem         = 4
	numImports     = 5
)

var testTypes = [][]byte{
	{0x60, 0, 0},
	{0x60, 1, valI64, 0},
	{0x60, 3, valI64, valI32, valI32, 0},
	{0x60, 2, valI64, valI64, 0},
	{0x60, 1, valI64, 1, valI32},
	{0x60, 4, valI64, valI32, valI32, valI32, 1, valI32},
	{0x60, 1, valI32, 0},
}

type testFunc struct {
	name string
	typ  byte
	code []byte // instructions without the trailing end
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func wasmVec(items [][]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(payload)))...)
	return append(out, payload...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func call(fn uint64) []byte    { return cat([]byte{opCall}, uleb(fn)) }
func localGet(i uint64) []byte { return cat([]byte{opLocalGet}, uleb(i)) }
func i32Const(v int32) []byte  { return cat([]byte{opI32Const}, sleb(int64(v))) }
func i64Const(v int64) []byte  { return cat([]byte{opI64Const}, sleb(v)) }

func buildPlugin(funcs []testFunc) []byte {
	imports := [][]byte{
		cat(wasmName(HostModule), wasmName("select_string"), []byte{0x00, typeSelectStr}),
		cat(wasmName(HostModule), wasmName("select_window"), []byte{0x00, typeSelectWin}),
		cat(wasmName(HostModule), wasmName("closed"), []byte{0x00, typeVoid}),
		cat(wasmName(HostModule), wasmName("items"), []byte{0x00, typeItems}),
		cat(wasmName(HostModule), wasmName("item"), []byte{0x00, typeItem}),
	}

	var decls, exports, bodies [][]byte
	for i, f := range funcs {
		decls = append(decls, []byte{f.typ})
		exports = append(exports, cat(wasmName(f.name), []byte{0x00}, uleb(uint64(numImports+i))))
		body := cat([]byte{0x00}, f.code, []byte{opEnd})
		bodies = append(bodies, cat(uleb(uint64(len(body))), body))
	}
	exports = append(exports, cat(wasmName("memory"), []byte{0x02, 0x00}))

	data := cat([]byte{0x00}, i32Const(16), []byte{opEnd}, wasmName("hello"))

	return cat(
		[]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
		wasmSection(1, wasmVec(testTypes)),
		wasmSection(2, wasmVec(imports)),
		wasmSection(3, wasmVec(decls)),
		wasmSection(5, wasmVec([][]byte{{0x00, 0x01}})),
		wasmSection(7, wasmVec(exports)),
		wasmSection(10, wasmVec(bodies)),
		wasmSection(11, wasmVec([][]byte{data})),
	)
}

// fullPlugin exports every entry point:
//
//	ShowFileSystem     selects "hello"
//	ShowProgramsList   reports closed
//	ShowWindowsList    selects window 0x1234
//	ShowProcessesList  stays displayed
//	ShowItemsList      fetches the items and selects entry itemIndex
//	Hide               reports closed
//	RunLastDefinition  traps
func fullPlugin(itemIndex int32) []testFunc {
	return []testFunc{
		{"Initialize", typeVoid, nil},
		{"ShowFileSystem", typeShow, cat(localGet(0), i32Const(16), i32Const(5), call(fnSelectString))},
		{"ShowProgramsList", typeShow, call(fnClosed)},
		{"ShowWindowsList", typeShow, cat(localGet(0), i64Const(0x1234), call(fnSelectWindow))},
		{"ShowProcessesList", typeShow, nil},
		{"ShowItemsList", typeShow, cat(
			localGet(0), call(fnItems), []byte{opDrop},
			localGet(0), i32Const(64),
			localGet(0), i32Const(itemIndex), i32Const(64), i32Const(32), call(fnItem),
			call(fnSelectString),
		)},
		{"Hide", typeVoid, call(fnClosed)},
		{"RunLastDefinition", typeVoid, []byte{opUnreachable}},
	}
}

func withoutFunc(funcs []testFunc, name string) []testFunc {
	var out []testFunc
	for _, f := range funcs {
		if f.name != name {
			out = append(out, f)
		}
	}
	return out
}

func replaceFunc(funcs []testFunc, f testFunc) []testFunc {
	out := withoutFunc(funcs, f.name)
	return append(out, f)
}
