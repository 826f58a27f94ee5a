// Package mocks holds gomock doubles for the sink interfaces.
package mocks

//go:generate mockgen -destination=message_writer.go -package=mocks relentless-jobs/internal/kafka MessageWriter
//go:generate mockgen -destination=message_reader.go -package=mocks relentless-jobs/internal/kafka MessageReader
//go:generate mockgen -destination=neo4j.go -package=mocks relentless-jobs/internal/graph SessionRunner,DriverSessioner
//go:generate mockgen -destination=status_store.go -package=mocks relentless-jobs/internal/store StatusStore
