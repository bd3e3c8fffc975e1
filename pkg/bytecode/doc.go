// Package bytecode defines the compiled form of scripts and functions:
// the opcode set, the immutable CompiledCode artifact, a disassembler, a
// structural verifier and a canonical CBOR encoding.
//
// # Instruction format
//
// An instruction is one opcode byte followed by its operands:
//
//   - Literal operands index the literal table. They are one byte wide
//     unless FlagWideLiterals is set, in which case they are two bytes,
//     big-endian.
//   - Byte operands carry small counts such as call argument counts.
//   - Branch operands are unsigned distances measured from the branch
//     opcode. Each branch opcode belongs to a family of three consecutive
//     opcodes whose members encode the distance in 1, 2 or 3 bytes.
//     Forward and backward branches are distinct families.
//
// # Stack effects
//
// Every opcode declares its effect on the operand stack when execution
// falls through and, for branches, when the branch is taken. With, for-in,
// for-of and try contexts occupy ContextSlots stack slots while live.
// Verify replays these effects over every reachable path.
//
// # Literal table
//
// The literal table is partitioned by role; see CompiledCode. A function
// literal owns the CompiledCode of the nested function, so one artifact
// holds a whole script.
package bytecode
