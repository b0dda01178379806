// Package config loads the YAML configuration of the error handling runtime
// and builds handler chains from it.
//
// A document declares custom error types, global error handlers that flows
// reference by name, and per-flow handlers with error mappings:
//
//	error_types:
//	  - id: APP:BACKEND_DOWN
//	    parent: CONNECTIVITY
//
//	error_handlers:
//	  dead-letter:
//	    - kind: on-error-propagate
//	      processors:
//	        - name: publish
//	          params: {subject: orders.dlq}
//
//	flows:
//	  orders:
//	    mappings:
//	      - {component: processors/0, source: CONNECTIVITY, target: APP:BACKEND_DOWN}
//	    handlers:
//	      - kind: on-error-continue
//	        type: APP:BACKEND_DOWN
//	        processors:
//	          - name: set-payload
//	            params: {value: queued}
//	  billing:
//	    error_handler: dead-letter
//
// # Loading
//
// Loader merges layers over DefaultConfig (maps merge, lists are replaced),
// then applies FLOWFAULT_* environment overrides and validates:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.yaml")
//	cfg, err := loader.Load()
//
// Durations use Go syntax ("500ms", "30s"). Only .yaml and .yml files below
// the working directory, or given by absolute path, are read.
//
// # Building
//
// Build registers the custom error types, initialises one chain per flow and
// returns them as Flows. Flows without handlers use default_error_handler
// when it is set. Dispose releases every chain.
//
// SafeConfig guards a configuration shared between goroutines; Get returns a
// deep copy.
package config
