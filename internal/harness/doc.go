// Package harness provides conformance testing for A2UI message streams.
//
// A scenario feeds one or more batches into a fresh surface store, then
// asserts on the surfaces that result. Each run also renders every
// surface's preview tree into a snapshot that is compared with a golden
// file.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	now: "2025-03-14T15:09:00Z"   # render time for {{current_time}} etc.
//	timezone: Europe/Berlin
//	steps:
//	  - mode: import               # whole-batch validation, all or nothing
//	    file: batches/booking.json
//	  - mode: live                 # incremental, best effort
//	    messages:
//	      - updateDataModel: {surfaceId: booking, path: /guest/name, value: Grace}
//	assertions:
//	  - type: resolved_text
//	    surface: booking
//	    component: title
//	    expect: Grace
//	  - type: validation_error
//	    code: E300
//	    step: 0
//
// Unknown fields are rejected so typos fail loudly.
//
// # Golden Files
//
// The snapshot lists each step with its findings and then each surface's
// tree. Regenerate golden files with:
//
//	go test ./internal/harness -update
package harness
