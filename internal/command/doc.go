// Package command applies a per-unit operation across many units.
//
// Targets are split into fixed-size groups that run one after another.
// Within a group every unit is driven concurrently and the group completes
// only when all of them have settled. A failing unit never cancels its
// siblings. Discovery is held off for the whole burst plus a settle delay.
package command
