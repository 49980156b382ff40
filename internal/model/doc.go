// Package model defines shared data types used across the aggression monitor.
//
// Conventions:
//   - Prices and quantities: shopspring decimal.Decimal, parsed from the exchange's string fields
//   - Timestamps: time.Time in UTC with millisecond precision
//   - Trade IDs: exchange-assigned int64, monotonically increasing per symbol
//   - Imbalance: buy volume minus sell volume, in base asset units
package model
