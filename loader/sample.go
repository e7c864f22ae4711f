package loader

// SampleModel is a small three-statement model with one year of actuals
// and one forecast year. `finmodel init` writes it to disk.
const SampleModel = `# finmodel sample model
settings:
  revenueAccountId: sales
  retainedEarningsAccountId: retained_earnings
  cashAccountId: cash
  preserveActuals: true

periods:
  - {id: "2024", sequence: 1, year: 2024, historical: true}
  - {id: "2025", sequence: 2, year: 2025}

accounts:
  - id: sales
    name: Sales
    sheet: pl
    polarity: credit
    order: [1, 1, 1]
    parameter: {type: growthRate, value: 0.1}
  - id: cogs
    name: Cost of goods sold
    sheet: pl
    polarity: debit
    order: [1, 1, 2]
    parameter: {type: percentage, value: 0.6, base: sales}
  - id: opex
    name: Operating expenses
    sheet: pl
    polarity: debit
    order: [1, 2, 1]
    parameter: {type: childrenSum}
  - id: rent
    name: Rent
    parent: opex
    sheet: pl
    polarity: debit
    order: [1, 2, 2]
    parameter: {type: constant, value: 5}
  - id: salaries
    name: Salaries
    parent: opex
    sheet: pl
    polarity: debit
    order: [1, 2, 3]
    parameter: {type: percentageOfRevenue, value: 0.1}
  - id: depreciation
    name: Depreciation
    sheet: pl
    polarity: debit
    order: [1, 3, 1]
    parameter: {type: constant, value: 10}
    impact: {type: adjustment, target: ppe, operation: subtract}
  - id: net_income
    name: Net income
    sheet: pl
    polarity: credit
    order: [1, 4, 1]
    parameter: {type: formula, text: "sales - cogs - opex - depreciation"}
    impact: {type: baseProfit}
  - id: gross_margin
    name: Gross margin
    sheet: pl
    order: [1, 5, 1]
    parameter: {type: formula, text: "ROUND((sales - cogs) / sales, 4)"}
  - id: capex
    name: Capital expenditure
    sheet: ppe
    polarity: debit
    order: [3, 1, 1]
    parameter: {type: constant, value: 30}
    impact: {type: adjustment, target: ppe, operation: add}
  - id: cash
    name: Cash
    sheet: bs
    polarity: debit
    order: [2, 1, 1]
  - id: receivables
    name: Accounts receivable
    sheet: bs
    polarity: debit
    order: [2, 1, 2]
    parameter: {type: percentage, value: 0.5, base: sales}
  - id: ppe
    name: Property, plant and equipment
    sheet: bs
    polarity: debit
    order: [2, 1, 3]
  - id: retained_earnings
    name: Retained earnings
    sheet: bs
    polarity: credit
    order: [2, 3, 1]

values:
  sales: {"2024": 100}
  cash: {"2024": 40}
  receivables: {"2024": 50}
  ppe: {"2024": 200}
  retained_earnings: {"2024": 300}
`
