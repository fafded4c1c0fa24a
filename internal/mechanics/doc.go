// Package mechanics holds the pure math shared by balancing systems: control
// smoothing, economy caps, fees, growth curves, win-rate formulas and seeded
// stochastic draws. Nothing here keeps state; random helpers take the caller's
// generator explicitly.
package mechanics
