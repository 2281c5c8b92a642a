// Package fixture serves a simulated deployment over the same HTTP and
// websocket API the viewer consumes, so the viewer can run without a control
// plane.
//
// A scenario is a YAML file describing one deployment:
//
//	deployment:
//	  id: demo-1
//	  applicationName: web
//	approvalStage: WAIT_APPROVAL
//	stages:
//	  - id: plan
//	    name: K8S_PLAN
//	    log: ["\e[32mplanned 3 resources\e[0m"]
//	  - id: canary
//	    name: K8S_CANARY_ROLLOUT
//	    requires: [plan]
//	    logFile: canary.log
//	  - id: approve
//	    name: WAIT_APPROVAL
//	    requires: [canary]
//	  - id: primary
//	    name: K8S_PRIMARY_ROLLOUT
//	    requires: [approve]
//	    fail: true
//
// Every Step emits one log line per running stage, finishes stages whose log
// is exhausted and starts stages whose requirements succeeded. Approval
// stages wait for an approve command; skippable stages accept skip. WatchFile
// reloads the scenario when the file changes on disk.
package fixture
