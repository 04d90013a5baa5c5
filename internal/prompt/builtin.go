package prompt

import "sparqlgen/internal/database/graph"

const sparqlRephrase = `Task: Rephrase an input question into a new one.

The input question delimited by triple backticks is:
` + "```" + `
{{.Question}}
` + "```" + `

Use the {{.Schema}} ontology to guide the rephrasing of the input question.

Rules for the rephrasing:
- When searching for names semantically, compare against both the name and the alternate name of a property if one exists.
- For string comparison, use a case-insensitive regex match.
- When the question uses an abbreviation of a technique or concept, mention both the abbreviation and its full name.

Return only the rewritten question.
Do not repeat the original question.
Do not include explanations or apologies.
Do not wrap your response in backticks.
`

const sparqlGenerate = `Task: Write a SPARQL SELECT query for querying a GraphDB graph database.

The underlying ontology schema is {{.Schema}}{{if .Prefix}} and the prefix name is {{.Prefix}}{{end}}.

The question delimited by triple backticks is:
` + "```" + `
{{.Question}}
` + "```" + `

Include all necessary prefixes.
Do not include explanations or apologies in your response.
Do not wrap the query in backticks.
Do not include any text except the generated SPARQL query.
Create exactly one SPARQL query.
`

const sparqlRepair = `The following SPARQL query delimited by triple backticks
` + "```" + `
{{.Query}}
` + "```" + `
is not valid.
The error delimited by triple backticks is
` + "```" + `
{{.ErrorMessage}}
` + "```" + `
Give me a correct version of the SPARQL query.
Do not change the logic of the query.
Do not include explanations or apologies in your response.
Do not wrap the query in backticks.
Do not include any text except the generated SPARQL query.
The ontology schema delimited by triple backticks is:
` + "```" + `
{{.Schema}}
` + "```" + `
`

const sparqlConstruct = `Task: Rewrite an input SPARQL query into a SPARQL query that builds a graph with the CONSTRUCT form.

The underlying ontology schema is {{.Schema}}{{if .Prefix}} and the prefix name is {{.Prefix}}{{end}}.

The input SPARQL query delimited by triple backticks is:
` + "```" + `
{{.Query}}
` + "```" + `

Keep the WHERE clause semantics unchanged.
Include all necessary prefixes.
Do not wrap the query in backticks.
Do not include any text except the generated SPARQL query.
`

const cypherRephrase = `Task: Rephrase an input question so it maps cleanly onto a property graph.

The input question delimited by triple backticks is:
` + "```" + `
{{.Question}}
` + "```" + `

Use this graph schema to guide the rephrasing:
{{.Schema}}

Return only the rewritten question.
Do not include explanations or apologies.
Do not wrap your response in backticks.
`

const cypherGenerate = `You are a Neo4j Cypher query expert. Convert the following question into a read-only Cypher query.

Graph Schema:
{{.Schema}}

Question: {{.Question}}

Return ONLY the Cypher query, no explanation. Limit results to 25.
`

const cypherRepair = `The following Cypher query delimited by triple backticks
` + "```" + `
{{.Query}}
` + "```" + `
failed with the error delimited by triple backticks
` + "```" + `
{{.ErrorMessage}}
` + "```" + `
Give me a corrected version of the query.
Do not change the logic of the query.
Return ONLY the Cypher query, no explanation.

Graph Schema:
{{.Schema}}
`

var builtin = map[graph.Dialect]map[Kind]string{
	graph.DialectSPARQL: {
		KindRephrase:  sparqlRephrase,
		KindGenerate:  sparqlGenerate,
		KindRepair:    sparqlRepair,
		KindConstruct: sparqlConstruct,
	},
	graph.DialectCypher: {
		KindRephrase: cypherRephrase,
		KindGenerate: cypherGenerate,
		KindRepair:   cypherRepair,
	},
}
