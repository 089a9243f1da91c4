// Package planner turns a battery, grid and water-heater configuration plus a
// forecast horizon into a mixed-integer program, hands it to a milp.Solver
// and maps the solution back to a per-slot schedule.
//
// Two formulations share one builder. The relaxed one backs the SoC floor,
// the import fuse and the energy balance with penalised slack so that
// infeasibility is rare. The strict one turns those limits into hard bounds.
package planner
