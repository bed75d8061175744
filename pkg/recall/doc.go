// Package recall is an embeddable hybrid retrieval engine over a user's
// personal content: documents, transcripts, web captures and notes.
//
// Documents are split into overlapping chunks, embedded and indexed for
// vector, lexical (BM25) and temporal retrieval. A query runs all strategies
// concurrently, fuses them with Reciprocal Rank Fusion and assembles a bounded
// context with provenance.
//
//	client, _ := recall.New(ctx,
//	    recall.WithMemory(),
//	    recall.WithEmbedder(myEmbedder),
//	)
//	id, _ := client.Ingest(ctx, "user-1", recall.Document{
//	    ContentType: recall.TypeAudio,
//	    Text:        transcript,
//	    ContentTime: recordedAt,
//	})
//	res, _ := client.Query(ctx, "user-1", recall.Query{Text: "what did we agree on last week"})
//	for _, it := range res.Items {
//	    fmt.Println(it.Source.Title, it.Score, it.Text)
//	}
//
// Ask runs the same retrieval and, when a Generator is configured, produces an
// answer from the assembled context. Without a generator, or when it fails,
// the answer is a fallback that lists the relevant sources.
package recall
