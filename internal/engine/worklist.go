package engine

// workItem asks for target to be recomputed because trigger changed.
type workItem struct {
	target  string
	trigger string
}

// worklist is the LIFO stack driving a cascade. Observers of a changed
// variable are pushed so that the first observer is popped first, which
// makes the traversal depth-first in declaration order.
type worklist struct {
	items []workItem
}

func (w *worklist) pushObservers(trigger string, observers []string) {
	for i := len(observers) - 1; i >= 0; i-- {
		w.items = append(w.items, workItem{target: observers[i], trigger: trigger})
	}
}

func (w *worklist) pop() (workItem, bool) {
	if len(w.items) == 0 {
		return workItem{}, false
	}
	item := w.items[len(w.items)-1]
	w.items = w.items[:len(w.items)-1]
	return item, true
}

func (w *worklist) len() int { return len(w.items) }
