// Package featuregates is the entry point of the feature gate engine.
//
// Build one Gates value at process start, from the environment with
// NewFromEnv or from an explicit Config with New, and hand it to every
// reconciliation loop. Loops call MaybeRefresh with the evaluation context of
// the cluster they reconcile at the top of a pass, and then read gates for
// that context with IsEnabledFor or GatesFor; reads never block and never
// fail once New has returned. IsEnabled and CurrentGates read the shared
// snapshot, resolved for the engine's own evaluation context, which never
// carries the targeting of a particular cluster.
//
//	gates, err := featuregates.NewFromEnv(ctx, featuregates.WithLogger(logger))
//	if err != nil {
//		// malformed STRIMZI_FEATURE_GATES, unknown provider, ...
//		os.Exit(1)
//	}
//	go gates.Run(ctx)
//
//	// in a reconciliation loop
//	ec := evaluation.ForCluster(namespace, name)
//	gates.MaybeRefresh(ctx, ec)
//	if gates.IsEnabledFor(ec, gate.UseKRaft) {
//		...
//	}
//
// The provider is chosen once, from STRIMZI_FEATURE_GATES_PROVIDER. The
// env-var provider reads STRIMZI_FEATURE_GATES once, so its gates only change
// with a restart. The remote provider asks a flagging backend, supplied with
// WithBackend, and is re-resolved on refresh.
package featuregates
