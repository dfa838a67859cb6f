package repo

// Upstream table and field names.
const (
	TableEvents           = "Events"
	TableSlots            = "Volunteer Scheduled Slots"
	TableNeighborhoods    = "Neighborhoods"
	TableDropoffLocations = "Drop Off Locations"
	TableSpecialGroups    = "Special Groups"
)

const (
	fieldStart             = "Start Time"
	fieldPickupAddress     = "Pickup Address"
	fieldSpecialEvent      = "Special Event"
	fieldSpecialGroup      = "Special Group"
	fieldNumDrivers        = "Num Drivers"
	fieldNumPackers        = "Num Packers"
	fieldNumBoth           = "Num Drivers & Packers"
	fieldNumOnlyDrivers    = "Num Only Drivers"
	fieldNumOnlyPackers    = "Num Only Packers"
	fieldTotalParticipants = "Total Participants"
	fieldScheduledSlots    = "Scheduled Slots"

	fieldFirstName         = "First Name"
	fieldLastName          = "Last Name"
	fieldType              = "Type"
	fieldTimeSlot          = "Time Slot"
	fieldSpecialGroupName  = "Special Group Name"
	fieldTotalDeliveries   = "Total Deliveries"
	fieldEmail             = "Email"
	fieldZipCode           = "Zip Code"
	fieldVehicleType       = "Vehicle Type"
	fieldRestrictedHoods   = "Restricted Neighborhoods"
	fieldAssignedLocations = "Drop Off Locations"
	fieldDeliveryCount     = "Delivery Count"

	fieldName               = "Name"
	fieldSiteName           = "Site Name"
	fieldAddress            = "Address"
	fieldNeighborhoods      = "Neighborhoods"
	fieldStartTime          = "Start Time"
	fieldEndTime            = "End Time"
	fieldDeliveriesNeeded   = "Deliveries Needed"
	fieldDeliveriesAssigned = "Deliveries Assigned"
	fieldAvailable          = "Available"
	fieldGroupEvents        = "Events"
)

// Toggleable slot fields.
const (
	FieldConfirmed = "Confirmed"
	FieldCantCome  = "Can't Come"
)

var eventFields = []string{
	fieldStart, fieldPickupAddress, fieldSpecialEvent, fieldSpecialGroup,
	fieldNumDrivers, fieldNumPackers, fieldNumBoth, fieldNumOnlyDrivers, fieldNumOnlyPackers,
	fieldTotalParticipants, fieldScheduledSlots,
}

var slotFields = []string{
	fieldFirstName, fieldLastName, fieldType, FieldConfirmed, FieldCantCome,
	fieldTimeSlot, fieldSpecialGroupName, fieldTotalDeliveries, fieldEmail,
}

var driverFields = []string{
	fieldFirstName, fieldLastName, fieldType, fieldTimeSlot, fieldDeliveryCount,
	fieldZipCode, fieldVehicleType, fieldRestrictedHoods, fieldAssignedLocations,
}

var dropoffFields = []string{
	fieldSiteName, fieldAddress, fieldNeighborhoods, fieldStartTime, fieldEndTime,
	fieldDeliveriesNeeded, fieldDeliveriesAssigned, fieldAvailable,
}
