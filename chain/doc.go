// Package chain connects the attestation engine to a block-height source and
// to value transfer.
//
// Clocks:
//
//   - EthClock reads the head block number through go-ethereum's ethclient
//   - ManualClock is set explicitly, for tests and scripted hosts
//   - TimeClock derives a height from wall-clock time and a block interval
//
// Treasuries:
//
//   - MemoryTreasury books payments in process memory and records transfers
//   - EthTreasury holds funds in an Ethereum account and pays out with
//     signed EIP-1559 transactions carrying the transfer memo as calldata
package chain
