package domain

// domain package contains the Domain Models and Interfaces for the LMFDB knowledge service.
//
// `domain/lmfdb` package exposes root object for the application.
// Entrypoints of applications should instantiate it and use it to interact with the domain.
//
// `domain/ENTITY.go` has high-level entities (Domain Model types) and functions.
// For example, `domain/knowl.go` contains the `Knowl` entity.
//
// `domain/ENTITY` directory contains the "physical" representation of the domain entities,
// in PostgreSQL or in MongoDB.
// For example, `domain/knowl/db/interface.go` is the database expression of the knowl entity,
// `domain/knowl/db/postgres` and `domain/knowl/db/mongo` implement it.
//
// `domain/ENTITY/interface.go` exposes the client interface to handle the domain entity.
//
// # Entities
//
// - `knowl`: short annotations addressed by dotted ids, written in markdown with math.
// Knowls are transcluded into other knowls and pages at render time.
//
// - `record`: documents of mathematical datasets (curves, fields, forms, ...) keyed by labels.
// Records are written by importers with the upsert-merge pattern, and read by the web front.
//
// - `schema`: version of the database layout (tables or indexes).
