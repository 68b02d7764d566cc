package http

import (
	"context"

	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// CountDocuments returns the number of collections and the total number of
// stored chunks. Both are -1 when store is nil or cannot be listed.
func CountDocuments(ctx context.Context, store vectorstore.Store) (collections int, documents int) {
	if store == nil {
		return -1, -1
	}

	infos, err := store.ListCollections(ctx)
	if err != nil {
		return -1, -1
	}

	for _, info := range infos {
		documents += info.Count
	}
	return len(infos), documents
}
