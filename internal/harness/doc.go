// Package harness runs query scenarios end to end.
//
// A scenario names a CUE model, fixture rows and a query built from steps.
// The harness compiles the model, loads the fixtures into a fresh SQLite
// database, expands and executes the query through the engine and checks
// assertions against the resulting trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: posts_of_go_blog
//	description: "Filter posts through their blog"
//	model: ../model
//	fixtures:
//	  Blog:
//	    - { Id: 1, Name: Go, Slug: go }
//	  Post:
//	    - { Id: 1, Title: Hello, BlogId: 1 }
//	query:
//	  from: Post
//	  steps:
//	    - where: {eq: [Blog.Name, {lit: Go}]}
//	    - include: Blog
//	    - order_by: Id
//	assertions:
//	  - type: row_count
//	    count: 1
//	  - type: include
//	    navigation: Post.Blog
//	  - type: rows
//	    rows:
//	      - { Title: Hello, Blog: { Name: Go } }
//
// Steps and expressions are described on Step and Expr.
//
// # Assertion Types
//
//   - row_count: the number of result elements
//   - rows: elements in order, subset match per object
//   - value: the whole result value (scalars, aggregates, nulls)
//   - sql_contains, expression_contains: text in the SQL or rewritten expression
//   - include: a planned include of a navigation
//   - joins, queries: synthesised joins and executed statements
//   - error: the query failed with the given code
//
// # Deterministic Testing
//
// Every scenario executes with a fixed compilation id (scenario
// compilation_id, or "test-compilation") in an isolated in-memory
// database, so traces are identical across runs and can be compared
// against golden files with RunWithGolden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/include_blog.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
