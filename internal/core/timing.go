package core

import "time"

// Timing constants named once here so every delay in the startup chain and
// lifecycle fan-out appears exactly one place in the implementation.
const (
	// startupStepDelay separates each step of the init -> check_meshed ->
	// distribute_code -> init_all chain, keeping the inbox responsive
	// between steps.
	startupStepDelay = 300 * time.Millisecond

	// peerBootTimeout bounds how long init_all waits for a single peer's
	// local_init reply before treating the whole init phase as fatal.
	peerBootTimeout = 5 * time.Second

	// peerRebootTimeout bounds how long the Liveness Supervisor waits for
	// a single peer's local_reboot reply before shrinking the roster.
	peerRebootTimeout = 5 * time.Second

	// rebirthSettleDelay is the pause after a successful reboot before a
	// rejoining peer is told to start, so the peer's own re-init settles.
	rebirthSettleDelay = 500 * time.Millisecond

	// stopStagger and quitStagger space out per-peer sends to avoid
	// remote races when many peers are told to stop/quit at once.
	stopStagger = 100 * time.Millisecond
	quitStagger = 100 * time.Millisecond

	// shutdownDrain is how long shutdown waits after quit before unloading
	// the collector module on every peer.
	shutdownDrain = 3 * time.Second
)
