// Package role implements capability-based role negotiation: roles are
// registered with skill and permission requirements, agents are evaluated
// against them to produce confidence-scored bids, and assignments are tracked
// from creation through completion (history) or revocation. Teams layers
// named groups of role assignments on top of the manager.
//
// Confidence scoring: each satisfied skill contributes min(1, actual/required)
// match quality; the average is penalized by (1 - missingFraction*0.5) for
// missing skills and multiplied by 0.8 per missing permission. An agent is
// qualified only with zero missing skills and zero missing permissions.
package role
