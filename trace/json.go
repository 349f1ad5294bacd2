// File: trace/json.go
//
// Description:
// JSON projection of an execution tree. Every item becomes a single flat
// object merging the header fields with the entry fields; enum-like fields
// are emitted as their integer value and the header's size field is
// dropped, since it only describes the wire encoding. Fork entries carry
// their child traces inline, keyed by state id.

package trace

import "encoding/json"

// TreeToJSON converts an execution tree into JSON-serializable objects,
// one per item, preserving tree order.
func TreeToJSON(tree []TreeItem) []map[string]any {
	out := make([]map[string]any, 0, len(tree))
	for _, item := range tree {
		out = append(out, itemToJSON(item))
	}
	return out
}

// MarshalTree renders the execution tree as a JSON array.
func MarshalTree(tree []TreeItem) ([]byte, error) {
	return json.Marshal(TreeToJSON(tree))
}

func itemToJSON(item TreeItem) map[string]any {
	entry := map[string]any{
		"type":      uint8(item.Header.Type),
		"stateId":   item.Header.StateID,
		"timestamp": item.Header.Timestamp,
		"pid":       item.Header.Pid,
	}
	for key, value := range entryFields(item.Entry) {
		entry[key] = value
	}
	if _, ok := item.Entry.(*Fork); ok {
		children := make(map[uint32][]map[string]any, len(item.Children))
		for id, childTrace := range item.Children {
			children[id] = TreeToJSON(childTrace)
		}
		entry["children"] = children
	}
	return entry
}

// entryFields returns the JSON fields of one entry. The key names follow
// the trace dump format of the engine's own tooling.
func entryFields(e Entry) map[string]any {
	switch v := e.(type) {
	case *ModuleLoad:
		return map[string]any{
			"name":         v.ModuleName(),
			"path":         v.ModulePath(),
			"loadBase":     v.LoadBase,
			"nativeBase":   v.NativeBase,
			"size":         v.Size,
			"addressSpace": v.AddressSpace,
			"pid":          v.Pid,
		}
	case *ModuleUnload:
		return map[string]any{
			"loadBase":     v.LoadBase,
			"addressSpace": v.AddressSpace,
			"pid":          v.Pid,
		}
	case *ProcessUnload:
		return map[string]any{"returnCode": v.ReturnCode}
	case *Call:
		return map[string]any{"source": v.Source, "target": v.Target}
	case *Return:
		return map[string]any{"source": v.Source, "target": v.Target}
	case *Fork:
		return map[string]any{"pc": v.PC}
	case *BranchCoverage:
		return map[string]any{"pc": v.PC, "destPc": v.DestPC}
	case *Memory:
		return map[string]any{
			"pc":             v.PC,
			"address":        v.Address,
			"value":          v.Value,
			"size":           v.Size,
			"flags":          v.Flags,
			"hostAddress":    v.HostAddress,
			"concreteBuffer": v.ConcreteBuffer,
		}
	case *PageFault:
		return map[string]any{"pc": v.PC, "address": v.Address, "isWrite": v.IsWrite}
	case *TLBMiss:
		return map[string]any{"pc": v.PC, "address": v.Address, "isWrite": v.IsWrite}
	case *InstructionCount:
		return map[string]any{"count": v.Count}
	case *MemChecker:
		return map[string]any{
			"start": v.Start,
			"size":  v.Size,
			"flags": v.Flags,
			"name":  v.Name,
		}
	case *Exception:
		return map[string]any{"pc": v.PC, "vector": v.Vector}
	case *StateSwitch:
		return map[string]any{"newStateId": v.NewStateID}
	case *TranslationBlockStart:
		return tbFields(v.PC, v.TargetPC, v.Size, v.TBType, v.Flags, v.SymbMask, v.Registers)
	case *TranslationBlockEnd:
		return tbFields(v.PC, v.TargetPC, v.Size, v.TBType, v.Flags, v.SymbMask, v.Registers)
	case *Block:
		return map[string]any{"startPc": v.StartPC, "endPc": v.EndPC, "tbType": v.TBType}
	case *OSInfo:
		return map[string]any{"kernelStart": v.KernelStart}
	case *Unknown:
		return map[string]any{"length": v.Length}
	default:
		return map[string]any{}
	}
}

func tbFields(pc, target uint64, size uint32, tbType, flags, symbMask uint8, regs [8]uint64) map[string]any {
	return map[string]any{
		"pc":        pc,
		"targetPc":  target,
		"size":      size,
		"tbType":    tbType,
		"flags":     flags,
		"symbMask":  symbMask,
		"registers": regs,
	}
}
