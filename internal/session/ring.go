package session

// lineRing keeps the newest lines of a block. With max <= 0 it grows without
// bound; otherwise the oldest line is overwritten once capacity is reached.
type lineRing struct {
	data    []Line
	head    int
	count   int
	max     int
	dropped int
}

func newLineRing(max int) *lineRing {
	return &lineRing{max: max}
}

func (r *lineRing) push(line Line) {
	if r.max <= 0 {
		r.data = append(r.data, line)
		r.count++
		return
	}
	if r.count < r.max {
		if len(r.data) < r.max {
			r.data = append(r.data, line)
		} else {
			r.data[(r.head+r.count)%r.max] = line
		}
		r.count++
		return
	}
	r.data[r.head] = line
	r.head = (r.head + 1) % r.max
	r.dropped++
}

func (r *lineRing) len() int {
	return r.count
}

// since returns the retained lines whose absolute index (counting dropped
// lines) is at least from, oldest first.
func (r *lineRing) since(from int) []Line {
	skip := from - r.dropped
	if skip < 0 {
		skip = 0
	}
	if skip >= r.count {
		return nil
	}
	out := make([]Line, 0, r.count-skip)
	for i := skip; i < r.count; i++ {
		if r.max <= 0 {
			out = append(out, r.data[i])
			continue
		}
		out = append(out, r.data[(r.head+i)%r.max])
	}
	return out
}

// slice returns the retained lines, oldest first.
func (r *lineRing) slice() []Line {
	out := make([]Line, r.count)
	for i := 0; i < r.count; i++ {
		if r.max <= 0 {
			out[i] = r.data[i]
			continue
		}
		out[i] = r.data[(r.head+i)%r.max]
	}
	return out
}
