package supercart

import (
	enginepkg "github.com/ichaaulia/supercart/internal/engine"
	configpkg "github.com/ichaaulia/supercart/internal/engine/config"
	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	idspkg "github.com/ichaaulia/supercart/internal/engine/ids"
	jsoncodec "github.com/ichaaulia/supercart/internal/engine/jsoncodec"
	loggingpkg "github.com/ichaaulia/supercart/internal/engine/logging"
)

type (
	Config       = configpkg.Config
	Engine       = enginepkg.Engine
	Dependencies = enginepkg.Dependencies

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ValidationError = errspkg.ValidationError
)

var (
	NewEngine      = enginepkg.NewEngine
	ValidateConfig = configpkg.ValidateConfig

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop

	CreateULID = idspkg.CreateULID

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	NewValidationError = errspkg.NewValidationError
	IsValidation       = errspkg.IsValidation

	ErrClientRequired    = errspkg.ErrClientRequired
	ErrStoreRequired     = errspkg.ErrStoreRequired
	ErrSessionRequired   = errspkg.ErrSessionRequired
	ErrResolverRequired  = errspkg.ErrResolverRequired
	ErrNotConnected      = errspkg.ErrNotConnected
	ErrAlreadyConnected  = errspkg.ErrAlreadyConnected
	ErrSessionUnassigned = errspkg.ErrSessionUnassigned
	ErrSessionPaid       = errspkg.ErrSessionPaid
	ErrNotFound          = errspkg.ErrNotFound
)
