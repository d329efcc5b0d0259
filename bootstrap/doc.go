// Package bootstrap provides application initialization and lifecycle management.
// It wires configuration, logging, the rules engine and the ingest services
// together so main.go and the CLI stay thin.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx, bootstrap.Options{Input: os.Stdin})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for a shutdown signal or the end of the input stream
//	app.WaitForShutdown(ctx)
package bootstrap
