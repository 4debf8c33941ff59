// Package harness runs lifecycle scenarios as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	owner: "0xA11ce..."            # default caller
//	steps:
//	  - op: submit
//	    subject: Physics
//	    score: 72
//	    hours: 3
//	    ref: physics               # binds the new record id
//	  - op: analyze
//	    ref: physics
//	    as: "0xB0b..."             # caller override
//	    expect_error: UNAUTHORIZED
//	  - op: reveal
//	    ref: physics
//	assertions:
//	  - type: record_status
//	    ref: physics
//	    status: pending
//	  - type: score_range
//	    ref: physics
//	    min: 57.6
//	    max: 77.6
//
// # Assertion Types
//
//   - record_status: the record named by ref has the given status
//   - record_count: exactly count records exist, optionally filtered by status
//   - score_range: the decoded score of ref lies in [min, max)
//   - index_consistent: the key index has no duplicate ids and every id resolves
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory ledger with:
//   - record ids rec-001, rec-002, ... (testutil.SequenceIDs)
//   - a clock starting at testutil.DefaultEpoch, advanced one second per step
//   - codec noise pinned to Noise, so analyze maps v to v*0.8 + 10
//   - a signer that always returns Signature, or declines when decline is set
//   - no settle delay on reveal
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/learning_lifecycle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
