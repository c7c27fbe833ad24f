package schema

// Yellow is the yellow taxi profile. Aliases cover the 2009-2010 files,
// which were published with the original vendor column names.
var Yellow = &Profile{
	Name:          "yellow",
	PickupColumn:  "tpep_pickup_datetime",
	DropoffColumn: "tpep_dropoff_datetime",
	Columns: []Column{
		{Name: "VendorID", Aliases: []string{"vendor_id"}, Kind: KindInt32},
		{Name: "tpep_pickup_datetime", Aliases: []string{"Trip_Pickup_DateTime", "pickup_datetime"}, Kind: KindTimestamp, Required: true},
		{Name: "tpep_dropoff_datetime", Aliases: []string{"Trip_Dropoff_DateTime", "dropoff_datetime"}, Kind: KindTimestamp, Required: true},
		{Name: "passenger_count", Kind: KindInt64, Required: true},
		{Name: "trip_distance", Kind: KindFloat64, Required: true},
		{Name: "RatecodeID", Aliases: []string{"Rate_Code", "rate_code"}, Kind: KindInt64},
		{Name: "store_and_fwd_flag", Aliases: []string{"store_and_forward"}, Kind: KindString},
		{Name: "PULocationID", Kind: KindInt32},
		{Name: "DOLocationID", Kind: KindInt32},
		{Name: "payment_type", Kind: KindInt64},
		{Name: "fare_amount", Aliases: []string{"Fare_Amt"}, Kind: KindFloat64},
		{Name: "extra", Aliases: []string{"surcharge"}, Kind: KindFloat64},
		{Name: "mta_tax", Kind: KindFloat64},
		{Name: "tip_amount", Aliases: []string{"Tip_Amt"}, Kind: KindFloat64},
		{Name: "tolls_amount", Aliases: []string{"Tolls_Amt"}, Kind: KindFloat64},
		{Name: "improvement_surcharge", Kind: KindFloat64},
		{Name: "total_amount", Aliases: []string{"Total_Amt"}, Kind: KindFloat64, Required: true},
		{Name: "congestion_surcharge", Kind: KindFloat64},
		{Name: "airport_fee", Kind: KindFloat64},
		{Name: "cbd_congestion_fee", Kind: KindFloat64},
	},
}

// Green is the green (street-hail livery) taxi profile.
var Green = &Profile{
	Name:          "green",
	PickupColumn:  "lpep_pickup_datetime",
	DropoffColumn: "lpep_dropoff_datetime",
	Columns: []Column{
		{Name: "VendorID", Kind: KindInt32},
		{Name: "lpep_pickup_datetime", Kind: KindTimestamp, Required: true},
		{Name: "lpep_dropoff_datetime", Kind: KindTimestamp, Required: true},
		{Name: "store_and_fwd_flag", Kind: KindString},
		{Name: "RatecodeID", Kind: KindInt64},
		{Name: "PULocationID", Kind: KindInt32},
		{Name: "DOLocationID", Kind: KindInt32},
		{Name: "passenger_count", Kind: KindInt64, Required: true},
		{Name: "trip_distance", Kind: KindFloat64, Required: true},
		{Name: "fare_amount", Kind: KindFloat64},
		{Name: "extra", Kind: KindFloat64},
		{Name: "mta_tax", Kind: KindFloat64},
		{Name: "tip_amount", Kind: KindFloat64},
		{Name: "tolls_amount", Kind: KindFloat64},
		{Name: "ehail_fee", Kind: KindFloat64},
		{Name: "improvement_surcharge", Kind: KindFloat64},
		{Name: "total_amount", Kind: KindFloat64, Required: true},
		{Name: "payment_type", Kind: KindInt64},
		{Name: "trip_type", Kind: KindInt64},
		{Name: "congestion_surcharge", Kind: KindFloat64},
		{Name: "cbd_congestion_fee", Kind: KindFloat64},
	},
}
