package repository

import (
	"sort"

	"tableside/internal/domain"
)

// versionedDoc is a stored document together with its write counter.
type versionedDoc struct {
	doc     domain.Document
	version int64
}

// differ turns successive full reads of a collection into snapshots with
// per-document change classification. It belongs to a single subscription.
type differ struct {
	coll    Collection
	primed  bool
	version map[string]int64
}

func newDiffer(coll Collection) *differ {
	return &differ{coll: coll, version: make(map[string]int64)}
}

// next classifies docs against the previous read. ok is false when nothing
// changed since the last delivery.
func (d *differ) next(docs []versionedDoc) (snap Snapshot, ok bool) {
	sortDocs(docs)

	seen := make(map[string]int64, len(docs))
	snap = Snapshot{Collection: d.coll, Docs: make([]domain.Document, 0, len(docs))}
	for _, vd := range docs {
		snap.Docs = append(snap.Docs, vd.doc)
		seen[vd.doc.ID] = vd.version
		prev, existed := d.version[vd.doc.ID]
		switch {
		case !existed:
			snap.Changes = append(snap.Changes, Change{Type: ChangeAdded, Doc: vd.doc})
		case prev != vd.version:
			snap.Changes = append(snap.Changes, Change{Type: ChangeModified, Doc: vd.doc})
		}
	}

	removed := make([]string, 0)
	for id := range d.version {
		if _, ok := seen[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		snap.Changes = append(snap.Changes, Change{Type: ChangeRemoved, Doc: domain.Document{ID: id}})
	}

	first := !d.primed
	d.primed = true
	d.version = seen
	return snap, first || len(snap.Changes) > 0
}

// sortDocs puts documents in feed order: newest first, ties by id.
func sortDocs(docs []versionedDoc) {
	ts := make(map[string]int64, len(docs))
	for _, vd := range docs {
		ts[vd.doc.ID] = vd.doc.Timestamp().UnixNano()
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].doc.ID, docs[j].doc.ID
		if ts[a] != ts[b] {
			return ts[a] > ts[b]
		}
		return a < b
	})
}
