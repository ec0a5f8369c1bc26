// Package venuefinder embeds the conversational venue recommendation pipeline
// in a Go program without running the HTTP server.
//
// The client keeps sessions in process and optionally snapshots them to
// Valkey or Redis. Each Ask call is one conversational turn: filters from the
// turn are merged into the session, the candidate cache is reused when
// possible, and a ranked list plus a short response is returned.
//
//	client, _ := venuefinder.New(ctx,
//	    venuefinder.WithGooglePlaces(os.Getenv("GOOGLE_PLACES_API_KEY")),
//	    venuefinder.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	res, _ := client.Ask(ctx, venuefinder.Turn{
//	    Message:  "quiet italian place for dinner",
//	    Location: &venuefinder.Location{Lat: 40.7128, Lng: -74.0060},
//	})
//	res, _ = client.Ask(ctx, venuefinder.Turn{
//	    SessionID: res.SessionID,
//	    Message:   "something cheaper",
//	    Set:       &venuefinder.Preferences{PriceLevel: venuefinder.Int(1)},
//	})
package venuefinder
