// Package caseflow provides an AI-assisted legal case analysis service for
// UK probate and divorce matters.
//
// A submitted case intake is handed to a crew of LLM agents (document
// analysis, legal strategy, tax assessment, compliance review, case summary)
// executed by an embedded pipeline engine with pluggable layers:
//
//   - runtime   – orchestration of crew run execution
//   - allocator – task allocation and state management
//   - executor  – task execution through registered actions
//   - review    – optional human-in-the-loop task sign-off
//
// End-users typically interact via the high-level Service façade exposed by
// the root package:
//
//	srv, _ := caseflow.New()
//	_ = srv.Start(ctx)
//	record, _ := srv.Cases().Submit(ctx, casework.CaseTypeProbate, intake)
//
// The HTTP surface in internal/server exposes the same operations as a REST
// API. For more details see the README and individual sub-packages.
package caseflow
