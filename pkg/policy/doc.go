// Package policy checks resolved build plans against Open Policy Agent
// (OPA) policies written in Rego.
//
// Each policy is a Rego module defining a "deny" set. The engine evaluates
// every enabled policy once per configuration of a plan, with this input:
//
//	{
//	    "plan":          <engine.PlanSnapshot>,
//	    "configuration": <engine.ConfigurationSnapshot>,
//	    "context":       {"operation": "check", "timestamp": ...}
//	}
//
// A deny entry is either a message string, which takes the policy's default
// severity, or an object with "message", "severity" and optionally
// "configuration" keys. Any violation of severity "error" makes the plan
// not allowed.
//
// # Built-in Policies
//
//   - artefact-naming: the artefact file name is set and has no separators
//   - source-folders: at least one source folder, all absolute
//   - debug-symbols: debug profiles define a DEBUG symbol (warning)
//   - symbol-conflicts: symbols both added and removed (info)
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	result, err := eng.CheckPlan(ctx, plan.Snapshot())
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s [%s] %s\n", v.Configuration, v.Severity, v.Message)
//	    }
//	}
//
// Policy files may be .rego modules, named after the file with their leading
// comment block as description, or JSON documents holding one policy or a
// bundle with a "policies" list. Engine.Watch reloads them when they change.
package policy
