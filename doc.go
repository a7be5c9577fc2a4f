// Package brainy is an embeddable vector-plus-graph store.
//
// Every record is a Noun (an entity with a dense vector, a typed label,
// free-form metadata, and adjacency into a type-aware HNSW graph) or a
// Verb (a typed, weighted, directed edge between two nouns, itself
// carrying a vector and metadata). The store answers three interleaved
// query modes through Find: k-nearest-neighbor search over vectors, graph
// traversal over verbs, and structured filters over metadata — fused into
// a single ranked result ("triple intelligence").
//
// # Quick start
//
//	store, err := brainy.New(brainy.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close(context.Background())
//
//	n := &brainy.Noun{ID: "n1", Vector: vec, Type: brainy.NounThing}
//	if err := store.Add(ctx, n); err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := store.Find(ctx, brainy.Query{Vector: vec}, brainy.FindOptions{Limit: 10})
//
// # Storage backends
//
// Config.Storage.Kind selects one of four backends, all implementing the
// same internal/storage.Adapter capability set: "memory" (process-local),
// "filesystem" (one JSON file per entity), "objectStore" (S3-backed,
// bucket-partitioned), and "sqlite" (modernc.org/sqlite, no cgo).
//
// # Distributed deployment
//
// Independent processes can share a bucket and partition work by setting
// Config.Distributed; see internal/distconfig for the shared-config and
// role-resolution contract (reader / writer / hybrid).
package brainy
