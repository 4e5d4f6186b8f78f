// Package workflow validates content status transitions.
//
// The engine is a pure function over (site policy, caller role, current
// status, requested status): it either accepts the one-step transition or
// rejects it with a ForbiddenError naming the rule violated. It never mutates
// content; time-based promotions such as Scheduled to Published are the
// business layer's concern.
package workflow
