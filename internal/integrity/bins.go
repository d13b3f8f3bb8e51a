// Package integrity detects and repairs missing or corrupted minute-bar
// history by deriving gap reports and issuing bounded historical requests.
package integrity

// minuteStep is the spacing of bar timestamps in Unix seconds.
const minuteStep int64 = 60

// chunk is one contiguous run of minute timestamps bound for a single
// historical request.
type chunk struct {
	startTS int64
	count   int
}

// timestamps enumerates the chunk's expected minute timestamps.
func (c chunk) timestamps() []int64 {
	out := make([]int64, c.count)
	for i := range out {
		out[i] = c.startTS + int64(i)*minuteStep
	}
	return out
}

// chunkSpan partitions the contiguous minute range [startTS, endTS) into
// sequential chunks of at most maxBin minutes.
func chunkSpan(startTS, endTS int64, maxBin int) []chunk {
	if endTS <= startTS || maxBin <= 0 {
		return nil
	}
	total := int((endTS - startTS) / minuteStep)
	if (endTS-startTS)%minuteStep != 0 {
		total++
	}

	var chunks []chunk
	for off := 0; off < total; off += maxBin {
		n := maxBin
		if off+n > total {
			n = total - off
		}
		chunks = append(chunks, chunk{startTS: startTS + int64(off)*minuteStep, count: n})
	}
	return chunks
}

// groupRuns splits a sorted timestamp set into maximal runs of consecutive
// minutes. Within a run, timestamp minus rank*minuteStep is constant.
func groupRuns(ts []int64) [][]int64 {
	if len(ts) == 0 {
		return nil
	}
	var runs [][]int64
	run := []int64{ts[0]}
	for _, t := range ts[1:] {
		if t == run[len(run)-1]+minuteStep {
			run = append(run, t)
			continue
		}
		runs = append(runs, run)
		run = []int64{t}
	}
	return append(runs, run)
}

// splitOversize builds a new chunk list from an immutable snapshot of runs,
// carving any run longer than maxBin into balanced sub-chunks.
func splitOversize(runs [][]int64, maxBin int) []chunk {
	if maxBin <= 0 {
		return nil
	}
	var chunks []chunk
	for _, run := range runs {
		if len(run) <= maxBin {
			chunks = append(chunks, chunk{startTS: run[0], count: len(run)})
			continue
		}

		parts := (len(run) + maxBin - 1) / maxBin
		base := len(run) / parts
		rem := len(run) % parts
		off := 0
		for p := 0; p < parts; p++ {
			size := base
			if p < rem {
				size++
			}
			chunks = append(chunks, chunk{startTS: run[off], count: size})
			off += size
		}
	}
	return chunks
}

// binTimestamps groups a sorted, possibly non-contiguous timestamp set into
// request chunks: maximal consecutive runs, split where they exceed maxBin.
func binTimestamps(ts []int64, maxBin int) []chunk {
	return splitOversize(groupRuns(ts), maxBin)
}
