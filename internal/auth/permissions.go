package auth

// Permission names assigned by the external auth service. Admin implies all.
const (
	PermissionAdmin           = "admin"
	PermissionViewPayroll     = "view_payroll"
	PermissionManagePayroll   = "manage_payroll"
	PermissionApprovePayroll  = "approve_payroll"
	PermissionProcessPayroll  = "process_payroll"
	PermissionManageTaxRules  = "manage_tax_rules"
	PermissionManageEmployees = "manage_employees"
)
