package chat

import "github.com/cloudwego/eino/schema"

// Trimmer bounds the history sent to the model. It must not modify its input.
type Trimmer interface {
	Trim(history []*schema.Message) []*schema.Message
}

// KeepSystemLastNTrimmer keeps all system messages and roughly the last N others.
// The kept window always starts at a user message so that no tool result loses the
// assistant message carrying its call. N <= 0 keeps everything.
type KeepSystemLastNTrimmer struct {
	N int
}

func (t KeepSystemLastNTrimmer) Trim(history []*schema.Message) []*schema.Message {
	if t.N <= 0 || len(history) == 0 {
		return history
	}

	nonSystemIdx := make([]int, 0, len(history))
	for i, m := range history {
		if m == nil {
			continue
		}
		if m.Role != schema.System {
			nonSystemIdx = append(nonSystemIdx, i)
		}
	}
	if len(nonSystemIdx) <= t.N {
		return history
	}

	start := len(nonSystemIdx) - t.N
	cut := -1
	for j := start; j < len(nonSystemIdx); j++ {
		if history[nonSystemIdx[j]].Role == schema.User {
			cut = j
			break
		}
	}
	if cut < 0 {
		for j := start - 1; j >= 0; j-- {
			if history[nonSystemIdx[j]].Role == schema.User {
				cut = j
				break
			}
		}
	}
	if cut <= 0 {
		return history
	}

	keep := make(map[int]struct{}, len(nonSystemIdx)-cut)
	for _, i := range nonSystemIdx[cut:] {
		keep[i] = struct{}{}
	}

	out := make([]*schema.Message, 0, len(history))
	for i, m := range history {
		if m == nil {
			continue
		}
		if m.Role == schema.System {
			out = append(out, m)
			continue
		}
		if _, ok := keep[i]; ok {
			out = append(out, m)
		}
	}
	return out
}
