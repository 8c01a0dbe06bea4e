// Package io reads the structural model and load tables written by the
// solver pre-processor, and writes filtered topologies back in the same
// format.
//
// # Tables
//
// All tables are comma separated with a header row. Column names are matched
// after trimming whitespace and a leading UTF-8 byte order mark.
//
// Required (a missing or unreadable file is fatal):
//
//	Final_Nodes_Check.csv      NodeID,X,Y,Z
//	Final_Elements_Check.csv   ElementID,NodeIDs[,Type,PropertyID]
//
// NodeIDs lists two or more node ids separated by ';' or ','.
//
// Optional (absence omits the feature from every image):
//
//	Final_Rigids_Check.csv             IndependentNodeID,DependentNodeIDs
//	Final_SPC_Check.csv                NodeID
//	Report_LoadCalculation_MF.csv      MF_ID,NodeID,SWL(Ton),Calc_Fx,Calc_Fy,Calc_Fz,Result,...
//	Report_LoadCalculation_Winch.csv   CaseName,WinchID,NodeID,Input_Fx(Ton),...,Final_Fx,Final_Fy,Final_Fz,...
//
// Rows that cannot be parsed, including trailing free text such as the
// calculation appendix of the fitting load report, are skipped and counted.
//
// # Import
//
//	model, err := io.ReadModel("run/output", io.DefaultModelFiles())
//	loads, err := io.ReadLoads("run/output", io.DefaultLoadFiles(), io.GroupByCase)
//
// # Export
//
// [ExportTables] writes the node, element, rigid link and boundary tables of
// a topology, typically a filtered detail window, so it can be inspected or
// fed back into ReadModel.
package io
