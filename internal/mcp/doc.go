// Package mcp exposes docrag search and question answering as Model Context
// Protocol tools over stdio.
//
// Tools:
//
//	search_documents  {query, collections, limit}     ranked passages
//	ask_documents     {question, collections, limit}  grounded answer and passages
//	list_collections  {}                              collection names and counts
//
// Every tool returns a short text summary plus the structured output.
package mcp
