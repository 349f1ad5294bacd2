// File: coverage/basicblock.go
//
// Description:
// Basic block coverage. The static block list comes from an external
// disassembler dump (a .bblist JSON file); coverage is computed by
// intersecting those blocks with the executed translation block ranges.
// Translation blocks do not respect basic block boundaries, so a block
// counts as covered when the two ranges overlap in either direction.

package coverage

import (
	"encoding/json"
	"fmt"
	"os"
)

// BasicBlock is one disassembler-reported basic block.
type BasicBlock struct {
	StartAddr uint64 `json:"start_addr"`
	EndAddr   uint64 `json:"end_addr"`
	Function  string `json:"function"`
}

// BlockCoverageStats summarizes a coverage report.
type BlockCoverageStats struct {
	TotalBasicBlocks   int `json:"total_basic_blocks"`
	CoveredBasicBlocks int `json:"covered_basic_blocks"`
}

// BlockCoverage is the JSON coverage summary written for one module,
// aggregated across all execution states.
type BlockCoverage struct {
	Stats    BlockCoverageStats `json:"stats"`
	Coverage []BasicBlock       `json:"coverage"`
}

// LoadBasicBlocks reads a .bblist file, a JSON array of basic blocks.
func LoadBasicBlocks(path string) ([]BasicBlock, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var blocks []BasicBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no basic block information in %s", path)
	}
	return blocks, nil
}

// overlaps reports whether a translation block touches the basic block:
// the translation block starts inside it, or ends inside it.
func (b BasicBlock) overlaps(tb TBRange) bool {
	return (tb.Start >= b.StartAddr && tb.Start <= b.EndAddr) ||
		(tb.End >= b.StartAddr && tb.End <= b.EndAddr)
}

// ComputeBlockCoverage intersects the static block list with the executed
// translation block ranges from all coverage files.
func ComputeBlockCoverage(blocks []BasicBlock, files []string, targetName string) (*BlockCoverage, error) {
	covered := make(map[BasicBlock]bool)
	for _, f := range files {
		ranges, err := ParseTBFile(f, targetName)
		if err != nil {
			return nil, err
		}
		for _, tb := range ranges {
			for _, bb := range blocks {
				if bb.overlaps(tb) {
					covered[bb] = true
				}
			}
		}
	}
	if len(covered) == 0 {
		return nil, fmt.Errorf("no basic block coverage information for %s", targetName)
	}

	result := &BlockCoverage{
		Stats: BlockCoverageStats{
			TotalBasicBlocks:   len(blocks),
			CoveredBasicBlocks: len(covered),
		},
		Coverage: make([]BasicBlock, 0, len(covered)),
	}
	// Preserve the disassembler's block order in the report.
	for _, bb := range blocks {
		if covered[bb] {
			result.Coverage = append(result.Coverage, bb)
		}
	}
	return result, nil
}

// Save writes the coverage summary as JSON.
func (c *BlockCoverage) Save(path string) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
