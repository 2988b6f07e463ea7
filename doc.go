// Package docgraph enriches a batch of ranked search results with a typed
// knowledge graph and cross-document intelligence.
//
// Given the results of one retrieval call, docgraph can build an in-memory
// graph of documents, sections, recurring entities and topics and traverse
// it, or analyze how the documents relate: pairwise similarity, clusters,
// citation authority, complementary reading and factual conflicts.
//
// # Basic Usage
//
// Load configuration and create a client:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := docgraph.NewClientFromConfig(ctx, cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Analyzing a Batch
//
//	batch, err := loader.ReadFile("results.json", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report, err := client.Analyze(ctx, batch.Results)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, c := range report.DocumentClusters {
//		fmt.Printf("%s: %v\n", c.Name, c.Documents)
//	}
//
// # Traversing the Knowledge Graph
//
//	opts := graph.RelatedOptions(graph.Weighted)
//	opts.MaxHops = 2
//	results, err := client.Related(ctx, batch.Results, "token expiry", opts)
//
// # Conflict Detection
//
// Conflict detection compares numeric and duration values stated about the
// same subject. When a vector store is configured, only document pairs whose
// embeddings fall inside the similarity band are compared; Index writes those
// embeddings.
package docgraph
