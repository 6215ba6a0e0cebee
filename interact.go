// Package interact drives a pair of deployed smart contracts, a counter and a
// caller that forwards additions to it, through a typed proxy.
//
// The package is organised in layers, each usable on its own:
//
//   - Interface and Operation: a typed proxy over a contract ABI. Operations
//     are encoded eagerly, so an unknown name or a mistyped argument is
//     reported before anything is sent.
//   - TxBuilder: assembles an immutable Transaction and classifies it as a
//     deploy, upgrade, call, transfer or query.
//   - Dispatcher: submits transactions to a Ledger, one at a time or as a
//     concurrent Batch whose results keep the batch order.
//   - Client: the domain operations (deploy, add, sum, upgrade, ...) backed by
//     a persisted AddressBook.
//
// # Basic Usage
//
//	ledger, backend, err := interact.DialEthLedger(ctx, gatewayURL, wallet)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	book, err := interact.LoadAddressBook(interact.DefaultStatePath)
//	if err != nil {
//	    return err
//	}
//
//	client := interact.NewClient(ledger, interact.NewSender(wallet.Address()), book, artifacts)
//	if _, err := client.Deploy(ctx); err != nil {
//	    return err
//	}
//	if err := client.Add(ctx, big.NewInt(5)); err != nil {
//	    return err
//	}
//	sum, err := client.Sum(ctx)
//
// # Operations
//
// Each contract interface distinguishes four operation kinds:
//
//   - KindInit: the constructor, carried by a deploy together with the code.
//   - KindUpgrade: the upgrade constructor, carried with replacement code.
//   - KindEndpoint: a state-mutating call.
//   - KindView: a read-only query, never signed or paid for.
//
// # Results
//
// An operation declares the shape of its result. Numeric results decode into
// *big.Int; RawResult opts out of decoding and hands back the raw bytes.
//
// # Upgrades
//
// Code upgrades are sent to the contract's upgrade hook with the new code, the
// code metadata and the encoded upgrade arguments. After an upgrade the
// client verifies that the stored sum equals the requested value.
package interact
