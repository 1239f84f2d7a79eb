package binding

import (
	"fmt"

	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
)

// Operation indices into the resolution table.
const (
	opInitialize = iota
	opShowFileSystem
	opShowProgramsList
	opShowWindowsList
	opShowProcessesList
	opShowItemsList
	opHide
	opRunLastDefinition
	numOps
)

// EntryPoint is one row of the resolution table.
type EntryPoint struct {
	Operation string // e.g. "show_file_system"
	Symbol    string // exported name, matched exactly
	Signature nfmbind.Signature
	Mandatory bool
}

// EntryPoints is the ordered set of entry points a plugin image exports.
type EntryPoints []EntryPoint

var entryPoints = [numOps]EntryPoint{
	opInitialize:        {"initialize", "Initialize", nfmbind.SigVoid, true},
	opShowFileSystem:    {"show_file_system", "ShowFileSystem", nfmbind.SigShowString, true},
	opShowProgramsList:  {"show_programs_list", "ShowProgramsList", nfmbind.SigShowString, true},
	opShowWindowsList:   {"show_windows_list", "ShowWindowsList", nfmbind.SigShowWindow, true},
	opShowProcessesList: {"show_processes_list", "ShowProcessesList", nfmbind.SigShowString, true},
	opShowItemsList:     {"show_items_list", "ShowItemsList", nfmbind.SigShowItems, true},
	opHide:              {"hide", "Hide", nfmbind.SigVoid, true},
	opRunLastDefinition: {"run_last_definition", "RunLastDefinition", nfmbind.SigVoid, false},
}

// Table returns a copy of the resolution table in resolution order.
func Table() EntryPoints {
	out := make(EntryPoints, numOps)
	copy(out, entryPoints[:])
	return out
}

// Mandatory returns the symbols an image must export to be bound.
func (t EntryPoints) Mandatory() []string {
	var names []string
	for _, ep := range t {
		if ep.Mandatory {
			names = append(names, ep.Symbol)
		}
	}
	return names
}

// Lookup finds the row for an exported symbol.
func (t EntryPoints) Lookup(symbol string) (EntryPoint, bool) {
	for _, ep := range t {
		if ep.Symbol == symbol {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// resolve looks up every row of the table in img. All rows are attempted so
// that each failure is reported individually.
func resolve(img nfmbind.Image, logger *zap.Logger) ([numOps]nfmbind.Proc, error) {
	var procs [numOps]nfmbind.Proc
	missing := &errors.MissingSymbolsError{Path: img.Path()}

	for i, ep := range entryPoints {
		proc, err := img.Resolve(ep.Symbol, ep.Signature)
		if err == nil && proc == nil {
			err = fmt.Errorf("image returned a nil entry point")
		}
		if err != nil {
			if !ep.Mandatory {
				logger.Debug("optional entry point unavailable",
					zap.String("symbol", ep.Symbol),
					zap.Error(err))
				continue
			}
			missing.Symbols = append(missing.Symbols, errors.MissingSymbol{
				Symbol:    ep.Symbol,
				Signature: ep.Signature.String(),
				Reason:    err.Error(),
			})
			continue
		}
		procs[i] = proc
	}

	if len(missing.Symbols) > 0 {
		return [numOps]nfmbind.Proc{}, errors.SymbolResolution(missing)
	}
	return procs, nil
}
