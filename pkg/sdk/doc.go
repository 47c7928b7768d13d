// Package newsrank embeds the newsrank planner and ranker in a Go program,
// without running the HTTP API.
//
// A Client turns retrieval plans into OpenSearch or Qdrant requests, executes
// them and ranks hits by relevance blended with recency.
//
//	client, _ := newsrank.New(
//	    newsrank.WithOpenSearch(newsrank.OpenSearchConfig{URL: "http://localhost:9200"}),
//	    newsrank.WithQdrant(newsrank.QdrantConfig{URL: "http://localhost:6333"}),
//	    newsrank.WithEmbedder(myEmbedder),
//	)
//
//	res, _ := client.Query().
//	    Intent(newsrank.SearchArticles).
//	    Keywords("renewable energy").
//	    Hybrid().
//	    Sites("example.com").
//	    Since("2024-01-01").
//	    TopK(10).
//	    Do(ctx)
//
// Plans can also be passed as loosely typed maps, the same shape the HTTP API
// accepts, with Client.SearchRaw and Client.PlanRaw.
package newsrank
