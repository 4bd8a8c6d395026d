// Package lighting decides when a light relay should be on and drives it.
//
// Two policies are available:
//
//   - DirectPolicy switches the relay on after civil dusk and off after
//     civil dawn. The controller sends the command on every evaluation.
//   - FailSafePolicy checks the relay once at sunset + on offset and once at
//     sunrise + off offset, and only sends a command when the relay reports
//     the wrong state.
//
// Basic Usage:
//
//	calc, _ := sun.NewCalculator(sun.StrategyAlmanac, nil)
//	ctrl := lighting.NewController(lighting.Config{
//		Location:         sun.Location{Latitude: 38.7223, Longitude: -9.1393},
//		Zeniths:          sun.DefaultZeniths(),
//		OnOffsetMinutes:  15,
//		OffOffsetMinutes: -15,
//	}, calc, calc, relay.NewMemory(false), logger)
//
//	decision, err := ctrl.RunDirect(ctx)
//
// Actuator calls are issued through Call and awaited with Await so the
// fail-safe query always completes before the command that depends on it.
package lighting
