package datanet

import "sort"

// NetworkID is an arena handle for one connected component. Zero is never issued.
type NetworkID uint32

type NetworkInfo struct {
	Members     int
	CreatedTick uint64
}

// Registry is the network arena. It keeps member counts only; membership
// itself lives on the nodes and is derived by traversal.
type Registry struct {
	next    NetworkID
	nets    map[NetworkID]*NetworkInfo
	retired uint64
}

func NewRegistry() *Registry {
	return &Registry{nets: map[NetworkID]*NetworkInfo{}}
}

func (r *Registry) New(tick uint64) NetworkID {
	r.next++
	r.nets[r.next] = &NetworkInfo{CreatedTick: tick}
	return r.next
}

// Retire drops a handle from the arena. Nodes must no longer reference it.
func (r *Registry) Retire(id NetworkID) {
	if _, ok := r.nets[id]; !ok {
		return
	}
	delete(r.nets, id)
	r.retired++
}

func (r *Registry) Alive(id NetworkID) bool {
	_, ok := r.nets[id]
	return ok
}

func (r *Registry) Members(id NetworkID) int {
	if info, ok := r.nets[id]; ok {
		return info.Members
	}
	return 0
}

func (r *Registry) Info(id NetworkID) (NetworkInfo, bool) {
	info, ok := r.nets[id]
	if !ok {
		return NetworkInfo{}, false
	}
	return *info, true
}

// Len is the number of live networks.
func (r *Registry) Len() int { return len(r.nets) }

func (r *Registry) Retired() uint64 { return r.retired }

// IDs returns live handles in ascending order.
func (r *Registry) IDs() []NetworkID {
	out := make([]NetworkID, 0, len(r.nets))
	for id := range r.nets {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// move shifts one member from old to id. Emptied handles stay alive until
// the caller releases them.
func (r *Registry) move(old, id NetworkID) {
	if old == id {
		return
	}
	if info, ok := r.nets[old]; ok {
		info.Members--
	}
	if info, ok := r.nets[id]; ok {
		info.Members++
	}
}

func (r *Registry) reset() {
	r.nets = map[NetworkID]*NetworkInfo{}
}
