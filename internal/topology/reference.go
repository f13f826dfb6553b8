package topology

// Reference builds the 16-node, 24-link mesh worked through in spec.md's
// scenarios S1-S6, transcribed from the link list, forward/return segment
// tables, and RRD sample-key map of
// original_source/controller/srv6-path-orchestrator/phase3_realtime_multi_table.py.
// All 24 links share the same max bandwidth in this reference topology
// (spec.md section 4.2 notes this is permitted but not required).
func Reference() *Topology {
	const refMaxBandwidth = 125_000_000.0 // 1 Gbps in bytes/second

	t := New(1e-4)

	links := [][2]int64{
		{1, 2}, {1, 3},
		{2, 4}, {2, 5},
		{3, 5}, {3, 6},
		{4, 7}, {4, 8},
		{5, 8}, {5, 9},
		{6, 9}, {6, 10},
		{7, 11}, {8, 11},
		{8, 12}, {9, 12},
		{9, 13}, {10, 13},
		{11, 14}, {12, 14},
		{12, 15}, {13, 15},
		{14, 16}, {15, 16},
	}
	for _, l := range links {
		t.AddLink(l[0], l[1], refMaxBandwidth, rrdSampleKey(l[0], l[1]))
	}

	for from, hops := range forwardSegments {
		for to, ep := range hops {
			t.SetForward(from, to, ep)
		}
	}
	for from, hops := range returnSegments {
		for to, ep := range hops {
			t.SetReturn(from, to, ep)
		}
	}

	return t
}

// rrdSampleKey mirrors RRDDataManager's rrd_paths lookup: every reference
// link has an associated RRD file path used as its time-series sample key.
func rrdSampleKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	key, ok := rrdPaths[[2]int64{a, b}]
	if !ok {
		return ""
	}
	return key
}

var rrdPaths = map[[2]int64]string{
	{1, 2}: "/opt/app/mrtg/mrtg_file/r1-r2.rrd", {1, 3}: "/opt/app/mrtg/mrtg_file/r1-r3.rrd",
	{2, 4}: "/opt/app/mrtg/mrtg_file/r2-r4.rrd", {2, 5}: "/opt/app/mrtg/mrtg_file/r2-r5.rrd",
	{3, 5}: "/opt/app/mrtg/mrtg_file/r3-r5.rrd", {3, 6}: "/opt/app/mrtg/mrtg_file/r3-r6.rrd",
	{4, 7}: "/opt/app/mrtg/mrtg_file/r4-r7.rrd", {4, 8}: "/opt/app/mrtg/mrtg_file/r4-r8.rrd",
	{5, 8}: "/opt/app/mrtg/mrtg_file/r5-r8.rrd", {5, 9}: "/opt/app/mrtg/mrtg_file/r5-r9.rrd",
	{6, 9}: "/opt/app/mrtg/mrtg_file/r6-r9.rrd", {6, 10}: "/opt/app/mrtg/mrtg_file/r6-r10.rrd",
	{7, 11}: "/opt/app/mrtg/mrtg_file/r7-r11.rrd", {8, 11}: "/opt/app/mrtg/mrtg_file/r8-r11.rrd",
	{8, 12}: "/opt/app/mrtg/mrtg_file/r8-r12.rrd", {9, 12}: "/opt/app/mrtg/mrtg_file/r9-r12.rrd",
	{9, 13}: "/opt/app/mrtg/mrtg_file/r9-r13.rrd", {10, 13}: "/opt/app/mrtg/mrtg_file/r10-r13.rrd",
	{11, 14}: "/opt/app/mrtg/mrtg_file/r11-r14.rrd", {12, 14}: "/opt/app/mrtg/mrtg_file/r12-r14.rrd",
	{12, 15}: "/opt/app/mrtg/mrtg_file/r12-r15.rrd", {13, 15}: "/opt/app/mrtg/mrtg_file/r13-r15.rrd",
	{14, 16}: "/opt/app/mrtg/mrtg_file/r14-r16.rrd", {15, 16}: "/opt/app/mrtg/mrtg_file/r15-r16.rrd",
}

// forwardSegments is the r1->r16-direction segment/interface map. Interface
// names only matter on the first hop actually installed (spec.md section
// 9); transit-node entries still carry the source's interface strings for
// fidelity.
var forwardSegments = map[int64]map[int64]Endpoint{
	1:  {2: {"fd01:1::12", "eth1"}, 3: {"fd01:16::12", "eth2"}},
	2:  {4: {"fd01:2::12", "eth2"}, 5: {"fd01:4::12", "eth3"}},
	3:  {5: {"fd01:17::12", "eth0"}, 6: {"fd01:15::12", "eth0"}},
	4:  {7: {"fd01:3::12", "eth2"}, 8: {"fd01:6::12", "eth2"}},
	5:  {8: {"fd01:5::12", "eth3"}, 9: {"fd01:12::12", "eth3"}},
	6:  {9: {"fd01:18::12", "eth3"}, 10: {"fd01:14::12", "eth3"}},
	7:  {11: {"fd01:8::12", "eth3"}},
	8:  {11: {"fd01:7::12", "eth3"}, 12: {"fd01:b::12", "eth3"}},
	9:  {12: {"fd01:11::12", "eth3"}, 13: {"fd01:10::12", "eth3"}},
	10: {13: {"fd01:13::12", "eth3"}},
	11: {14: {"fd01:9::12", "eth3"}},
	12: {14: {"fd01:c::12", "eth3"}, 15: {"fd01:d::12", "eth3"}},
	13: {15: {"fd01:f::12", "eth3"}},
	14: {16: {"fd01:a::12", "eth3"}},
	15: {16: {"fd01:e::12", "eth3"}},
}

// returnSegments is the r16->r1-direction segment/interface map.
var returnSegments = map[int64]map[int64]Endpoint{
	16: {15: {"fd01:e::11", "eth1"}, 14: {"fd01:a::11", "eth2"}},
	15: {13: {"fd01:f::11", "eth1"}, 12: {"fd01:d::11", "eth2"}},
	14: {12: {"fd01:c::11", "eth3"}, 11: {"fd01:9::11", "eth3"}},
	13: {10: {"fd01:13::11", "eth3"}, 9: {"fd01:10::11", "eth3"}},
	12: {9: {"fd01:11::11", "eth3"}, 8: {"fd01:b::11", "eth3"}},
	11: {8: {"fd01:7::11", "eth3"}, 7: {"fd01:8::11", "eth3"}},
	10: {6: {"fd01:14::11", "eth3"}},
	9:  {6: {"fd01:18::11", "eth3"}, 5: {"fd01:12::11", "eth3"}},
	8:  {5: {"fd01:5::11", "eth3"}, 4: {"fd01:6::11", "eth3"}},
	7:  {4: {"fd01:3::11", "eth3"}},
	6:  {3: {"fd01:15::11", "eth0"}},
	5:  {3: {"fd01:17::11", "eth0"}, 2: {"fd01:4::11", "eth3"}},
	4:  {2: {"fd01:2::11", "eth2"}},
	3:  {1: {"fd01:16::11", "eth2"}},
	2:  {1: {"fd01:1::11", "eth1"}},
}
