/*
Package cash keeps account balances and moves funds between accounts.

It is the in-repo implementation of the ledger service consumed by the
execution gate in x/custody. Every account is stored as one record
holding its native balance together with any number of fungible-token
balances, each token identified by the address of its contract.

Amounts are unit-less non-negative integers. All arithmetic is overflow
checked and a move fails when the source does not hold enough funds.
Deposits (issuing funds to an account) always succeed as long as the
amount is positive and the balance does not overflow.
*/
package cash
