// Package workflow loads prompt chains from JSON or YAML files.
//
// A workflow file declares the prompts of a chain together with the
// providers and tools it needs:
//
//	name: support
//	providers:
//	  - name: claude
//	    type: anthropic
//	    model: claude-sonnet-4-5
//	tools:
//	  - name: lookup
//	    command: ["./lookup.sh"]
//	    parameters:
//	      type: object
//	      properties:
//	        id: { type: string }
//	prompts:
//	  - name: main
//	    user: "{query}"
//	    tools: [lookup]
//	    then:
//	      "status == 'done'": { function: completeTask, arguments: { response: "{answer}" } }
//	      "true": { prompt: main }
//
// The order of a prompt's then entries is kept as written. Validate lints a
// definition statically; Build turns it into a chain.Config, running command
// tools as external processes. Watcher reloads a file when it changes.
package workflow
