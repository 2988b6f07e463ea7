// Package embedder provides text embedding clients for vector representations.
//
// # Supported Providers
//
//   - OpenAI and OpenAI-compatible servers: text-embedding-3-small,
//     text-embedding-3-large, text-embedding-ada-002 or any custom model
//   - EmbedEverything: models loaded in-process via go-embedeverything
//
// # Usage
//
//	var client embedder.Client = embedder.NewOpenAIEmbedder(apiKey, embedder.Config{
//	    Model:     "text-embedding-3-small",
//	    BatchSize: 100,
//	})
//	client = embedder.NewRetryClient(client, nil, logger)
//
//	embeddings, err := client.Embed(ctx, []string{"hello world"})
package embedder
