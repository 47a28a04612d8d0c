// Package tree builds and searches forests of random projection trees.
//
// Items live in the first slots records of an arena. Build appends split
// nodes behind them, one binary tree per root: every split node divides its
// items by a hyperplane, and its children are either item leaves or split
// nodes written earlier, so the graph never references forward.
//
// Search walks all trees at once with a max-priority queue keyed by the
// smallest margin seen on the path, collects up to search_k distinct
// items, then ranks them by exact distance.
package tree
