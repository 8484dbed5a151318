// Package summarize implements template-driven structured summarization.
// It builds prompts from stored templates, calls the language model through
// the generation boundary, validates the returned JSON against the template
// schema, and retries with correction hints when validation fails.
package summarize
