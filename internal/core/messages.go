package core

// message is the sum type flowing through Coordinator.inbox: every
// external command, every peer reply, and every death notification is one
// of these, processed one at a time in arrival order.
type message any

// Startup chain steps.
type msgCheckMeshed struct{}
type msgMeshResult struct{ err error }
type msgDistributeCode struct{}
type msgInitAllStep struct{}

// Operator commands. Each carries a buffered reply channel so the admin
// layer can hand the caller a log-equivalent line without blocking the
// Core -- every operator surface is treated as fire-and-forget. init_all
// is not among them: it only runs once, as the last step of the startup
// chain (msgInitAllStep), never as an operator-invocable command.
type cmdStartCollect struct{ reply chan<- string }
type cmdStopCollect struct{ reply chan<- string }
type cmdStatus struct{ reply chan<- string }
type cmdPull struct{ reply chan<- string }
type cmdShutdown struct{ reply chan<- string }

// Results of work offloaded to ephemeral worker goroutines.
type bootOutcome struct {
	node string
	conn *peerHandle
	err  error
}

type msgInitAllResult struct {
	results []bootOutcome
}

type msgRebootResult struct {
	node string
	conn *peerHandle
	err  error
}

// Peer-originated events, forwarded by each peer's supervisor watcher.
type msgPeerDied struct {
	node   string
	token  string
	reason error
}

type msgPullAck struct {
	node     string
	filename string
}

type msgRetrieved struct {
	node     string
	filename string
	ok       bool
}
