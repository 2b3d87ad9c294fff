//go:build pktdebug

package pktview

const debugChecks = true
