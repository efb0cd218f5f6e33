// Package memorag embeds the memorag retrieval-augmented chat pipeline in a Go
// program, without running the HTTP service.
//
// The client reads chunk embeddings and memo summaries from Postgres (pgvector),
// optionally caches query embeddings in Valkey, reranks candidates and answers
// with one of the configured chat providers.
//
//	client, err := memorag.New(ctx,
//	    memorag.WithPostgres(os.Getenv("DATABASE_URL")),
//	    memorag.WithValkey("localhost:6379", ""),
//	    memorag.WithEmbedder(myEmbedder),
//	    memorag.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	scope := memorag.Scope{OrgID: "org-1", ProjectID: "proj-1"}
//	hits, _ := client.Search(ctx, scope, "quarterly revenue", memorag.SearchLimit(5))
//
//	for ev, err := range client.Stream(ctx, scope, memorag.ChatRequest{Query: "What changed in Q3?"}) {
//	    if err != nil {
//	        break
//	    }
//	    fmt.Print(ev.Content)
//	}
package memorag
